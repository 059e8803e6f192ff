package variant

import (
	"fmt"
	"math"
	"time"

	"github.com/infracollect/archivekit/pkg/capability"
)

func (v Variant) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.bits != 0, true
}

// AsInt64 converts any signed integer kind.
func (v Variant) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return int64(v.bits), true
	default:
		return 0, false
	}
}

// AsUint64 converts any unsigned integer kind.
func (v Variant) AsUint64() (uint64, bool) {
	switch v.kind {
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return v.bits, true
	default:
		return 0, false
	}
}

// AsUint32 succeeds for unsigned kinds whose value fits 32 bits.
func (v Variant) AsUint32() (uint32, bool) {
	n, ok := v.AsUint64()
	if !ok || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

func (v Variant) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindFloat32:
		return float64(math.Float32frombits(uint32(v.bits))), true
	case KindFloat64:
		return math.Float64frombits(v.bits), true
	default:
		return 0, false
	}
}

func (v Variant) AsTime() (time.Time, bool) {
	if v.kind != KindDate {
		return time.Time{}, false
	}
	return v.date, true
}

func (v Variant) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsObject returns the held reference without acquiring it; the variant keeps
// ownership.
func (v Variant) AsObject() (capability.Unknown, bool) {
	obj := v.object()
	return obj, obj != nil
}

// AsArray returns the held items; the variant keeps ownership.
func (v Variant) AsArray() ([]Variant, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Variant) AsBlob() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return v.blob, true
}

// Interface returns the payload as a plain Go value, nil when empty. Object
// references are reported by their Go type name only.
func (v Variant) Interface() any {
	switch v.kind {
	case KindEmpty:
		return nil
	case KindBool:
		b, _ := v.AsBool()
		return b
	case KindInt8, KindInt16, KindInt32, KindInt64:
		n, _ := v.AsInt64()
		return n
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return v.bits
	case KindFloat32, KindFloat64:
		f, _ := v.AsFloat64()
		return f
	case KindDate:
		return v.date
	case KindString:
		return v.str
	case KindObject:
		return fmt.Sprintf("%T", v.object())
	case KindArray:
		items := make([]any, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Interface()
		}
		return items
	case KindBlob:
		return v.blob
	default:
		return nil
	}
}

func (v Variant) String() string {
	switch v.kind {
	case KindEmpty:
		return "empty"
	case KindString:
		return fmt.Sprintf("string(%q)", v.str)
	case KindDate:
		return fmt.Sprintf("date(%s)", v.date.Format(time.RFC3339Nano))
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindBlob:
		return fmt.Sprintf("blob(%d)", len(v.blob))
	default:
		return fmt.Sprintf("%s(%v)", v.kind, v.Interface())
	}
}
