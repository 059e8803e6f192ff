// Package variant implements the tagged value used for every property
// exchanged with a compression engine.
//
// A Variant holds exactly one payload selected by its Kind. Kinds that own
// their payload (strings, object references, arrays, blobs) must be Reset
// before the slot is reused; the Set methods refuse to overwrite them and
// return ErrOccupied instead of leaking the old payload.
package variant

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/infracollect/archivekit/pkg/capability"
)

// ErrOccupied is returned by the Set methods when the variant still holds an
// owning payload.
var ErrOccupied = errors.New("variant holds an owning payload; reset it first")

// Kind is the tag of a Variant.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindDate
	KindString
	KindObject
	KindArray
	KindBlob
)

var kindNames = [...]string{
	KindEmpty:   "empty",
	KindBool:    "bool",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindDate:    "date",
	KindString:  "string",
	KindObject:  "object",
	KindArray:   "array",
	KindBlob:    "blob",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Owning reports whether payloads of this kind need a release step.
func (k Kind) Owning() bool {
	switch k {
	case KindString, KindObject, KindArray, KindBlob:
		return true
	default:
		return false
	}
}

// Variant is a tagged union. The zero value is empty.
//
// Plain assignment aliases an owning payload; use Clone for an independent
// copy. An object reference is released at most once however many aliases
// are reset, and an alias whose reference was released reads as empty.
type Variant struct {
	kind Kind
	bits uint64
	date time.Time
	str  string
	ref  *objectRef
	arr  []Variant
	blob []byte
}

// objectRef owns one reference to obj. Aliases of a variant share it.
type objectRef struct {
	obj      capability.Unknown
	released atomic.Bool
}

func (r *objectRef) release() {
	if r != nil && r.released.CompareAndSwap(false, true) {
		r.obj.Release()
	}
}

// object returns the held reference, or nil once any alias released it.
func (v Variant) object() capability.Unknown {
	if v.kind != KindObject || v.ref == nil || v.ref.released.Load() {
		return nil
	}
	return v.ref.obj
}

func Empty() Variant { return Variant{} }

func Bool(b bool) Variant {
	var bits uint64
	if b {
		bits = 1
	}
	return Variant{kind: KindBool, bits: bits}
}

func Int8(n int8) Variant       { return Variant{kind: KindInt8, bits: uint64(int64(n))} }
func Int16(n int16) Variant     { return Variant{kind: KindInt16, bits: uint64(int64(n))} }
func Int32(n int32) Variant     { return Variant{kind: KindInt32, bits: uint64(int64(n))} }
func Int64(n int64) Variant     { return Variant{kind: KindInt64, bits: uint64(n)} }
func Uint8(n uint8) Variant     { return Variant{kind: KindUint8, bits: uint64(n)} }
func Uint16(n uint16) Variant   { return Variant{kind: KindUint16, bits: uint64(n)} }
func Uint32(n uint32) Variant   { return Variant{kind: KindUint32, bits: uint64(n)} }
func Uint64(n uint64) Variant   { return Variant{kind: KindUint64, bits: n} }
func Float32(f float32) Variant { return Variant{kind: KindFloat32, bits: uint64(math.Float32bits(f))} }
func Float64(f float64) Variant { return Variant{kind: KindFloat64, bits: math.Float64bits(f)} }
func Date(t time.Time) Variant  { return Variant{kind: KindDate, date: t} }
func Str(s string) Variant      { return Variant{kind: KindString, str: s} }

// Object returns a variant holding a new reference to o.
func Object(o capability.Unknown) Variant {
	if o == nil {
		return Variant{}
	}
	o.AddRef()
	return Variant{kind: KindObject, ref: &objectRef{obj: o}}
}

// Array returns a variant that takes ownership of items.
func Array(items ...Variant) Variant {
	return Variant{kind: KindArray, arr: items}
}

// Blob returns a variant holding a copy of b.
func Blob(b []byte) Variant {
	return Variant{kind: KindBlob, blob: bytes.Clone(b)}
}

func (v Variant) Kind() Kind     { return v.kind }
func (v Variant) IsEmpty() bool  { return v.kind == KindEmpty }
func (v Variant) IsOwning() bool { return v.kind.Owning() }

// Reset releases the owning payload, if any, and leaves v empty. Resetting an
// empty variant does nothing.
func (v *Variant) Reset() {
	switch v.kind {
	case KindObject:
		v.ref.release()
	case KindArray:
		for i := range v.arr {
			v.arr[i].Reset()
		}
	}
	*v = Variant{}
}

// ReleaseInto moves v into dst. dst is reset first; v is left empty.
func (v *Variant) ReleaseInto(dst *Variant) {
	if dst == v {
		return
	}
	dst.Reset()
	*dst = *v
	*v = Variant{}
}

// Clone returns a deep copy: arrays and blobs are duplicated and object
// references acquired.
func (v Variant) Clone() Variant {
	switch v.kind {
	case KindObject:
		return Object(v.object())
	case KindArray:
		items := make([]Variant, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Variant{kind: KindArray, arr: items}
	case KindBlob:
		return Blob(v.blob)
	default:
		return v
	}
}

func (v *Variant) store(n Variant) error {
	if v.kind.Owning() {
		return fmt.Errorf("cannot store %s: %w (holds %s)", n.kind, ErrOccupied, v.kind)
	}
	*v = n
	return nil
}

// Set stores a deep copy of src.
func (v *Variant) Set(src Variant) error {
	if v.kind.Owning() {
		return fmt.Errorf("cannot store %s: %w (holds %s)", src.kind, ErrOccupied, v.kind)
	}
	*v = src.Clone()
	return nil
}

func (v *Variant) SetEmpty() error            { return v.store(Variant{}) }
func (v *Variant) SetBool(b bool) error       { return v.store(Bool(b)) }
func (v *Variant) SetInt8(n int8) error       { return v.store(Int8(n)) }
func (v *Variant) SetInt16(n int16) error     { return v.store(Int16(n)) }
func (v *Variant) SetInt32(n int32) error     { return v.store(Int32(n)) }
func (v *Variant) SetInt64(n int64) error     { return v.store(Int64(n)) }
func (v *Variant) SetUint8(n uint8) error     { return v.store(Uint8(n)) }
func (v *Variant) SetUint16(n uint16) error   { return v.store(Uint16(n)) }
func (v *Variant) SetUint32(n uint32) error   { return v.store(Uint32(n)) }
func (v *Variant) SetUint64(n uint64) error   { return v.store(Uint64(n)) }
func (v *Variant) SetFloat32(f float32) error { return v.store(Float32(f)) }
func (v *Variant) SetFloat64(f float64) error { return v.store(Float64(f)) }
func (v *Variant) SetDate(t time.Time) error  { return v.store(Date(t)) }
func (v *Variant) SetString(s string) error   { return v.store(Str(s)) }
func (v *Variant) SetBlob(b []byte) error     { return v.store(Blob(b)) }

func (v *Variant) SetObject(o capability.Unknown) error {
	if v.kind.Owning() {
		return fmt.Errorf("cannot store object: %w (holds %s)", ErrOccupied, v.kind)
	}
	*v = Object(o)
	return nil
}

// SetArray stores a deep copy of items.
func (v *Variant) SetArray(items []Variant) error {
	return v.Set(Array(items...))
}
