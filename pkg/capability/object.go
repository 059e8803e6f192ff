package capability

import (
	"sync/atomic"
)

// Unknown is implemented by every object exchanged with an engine.
type Unknown interface {
	// QueryInterface returns a new reference to the object viewed through iid,
	// or ErrNoInterface when the object does not implement it.
	QueryInterface(iid GUID) (Unknown, error)

	// AddRef acquires a reference and returns the new count.
	AddRef() uint32

	// Release drops a reference and returns the new count. The object is
	// destroyed when the count reaches zero.
	Release() uint32
}

// Object is the embeddable base of every capability object. It owns the
// reference count and the dispatch table of declared interfaces.
//
// The zero value is not usable; call Init from the embedding type's
// constructor with the embedding pointer as self.
type Object struct {
	refs      atomic.Int32
	destroyed atomic.Bool
	self      Unknown
	iids      map[GUID]struct{}
	finalizer func()
}

// Init declares the capability set of self. finalizer, if not nil, runs once
// when the last reference is released.
func (o *Object) Init(self Unknown, finalizer func(), iids ...GUID) {
	o.self = self
	o.finalizer = finalizer
	o.iids = make(map[GUID]struct{}, len(iids)+1)
	o.iids[IIDUnknown] = struct{}{}
	for _, iid := range iids {
		o.iids[iid] = struct{}{}
	}
}

func (o *Object) QueryInterface(iid GUID) (Unknown, error) {
	if _, ok := o.iids[iid]; !ok || o.self == nil {
		return nil, ErrNoInterface
	}
	o.AddRef()
	return o.self, nil
}

func (o *Object) AddRef() uint32 {
	if o.destroyed.Load() {
		panic("capability: AddRef on a destroyed object")
	}
	return uint32(o.refs.Add(1))
}

func (o *Object) Release() uint32 {
	n := o.refs.Add(-1)
	if n < 0 {
		panic("capability: Release on an unreferenced object")
	}
	if n == 0 && o.destroyed.CompareAndSwap(false, true) && o.finalizer != nil {
		o.finalizer()
	}
	return uint32(n)
}

// Implements reports whether iid is part of the declared capability set.
func (o *Object) Implements(iid GUID) bool {
	_, ok := o.iids[iid]
	return ok
}

// RefCount returns the current number of references.
func (o *Object) RefCount() int32 {
	return o.refs.Load()
}

// Destroyed reports whether the last reference has been released.
func (o *Object) Destroyed() bool {
	return o.destroyed.Load()
}
