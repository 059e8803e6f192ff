package capability

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	iidReader = MustGUID("6f1c2a1e-0000-4000-8000-000000000001")
	iidSizer  = MustGUID("6f1c2a1e-0000-4000-8000-000000000002")
	iidOther  = MustGUID("6f1c2a1e-0000-4000-8000-000000000003")
)

type reader interface {
	Unknown
	ReadAll() string
}

type sizer interface {
	Unknown
	Size() int
}

type testObject struct {
	Object
	finalized int
}

func newTestObject() *testObject {
	o := &testObject{}
	o.Init(o, func() { o.finalized++ }, iidReader, iidSizer)
	return o
}

func (o *testObject) ReadAll() string { return "data" }
func (o *testObject) Size() int       { return 4 }

// liar declares a capability it does not implement.
type liar struct {
	Object
}

func TestObject_ReferenceCounting(t *testing.T) {
	for _, n := range []int{1, 2, 10} {
		obj := newTestObject()
		for i := 0; i < n; i++ {
			obj.AddRef()
		}
		for i := 0; i < n-1; i++ {
			obj.Release()
			assert.Equal(t, 0, obj.finalized, "destroyed before the last release (n=%d)", n)
		}
		assert.Equal(t, uint32(0), obj.Release())
		assert.Equal(t, 1, obj.finalized)
		assert.True(t, obj.Destroyed())
	}
}

func TestObject_ConcurrentReferenceCounting(t *testing.T) {
	obj := newTestObject()
	obj.AddRef()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				obj.AddRef()
				obj.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), obj.RefCount())
	assert.Equal(t, 0, obj.finalized)
	obj.Release()
	assert.Equal(t, 1, obj.finalized)
}

func TestObject_ReleaseUnreferencedPanics(t *testing.T) {
	obj := newTestObject()
	assert.Panics(t, func() { obj.Release() })
}

func TestObject_AddRefAfterDestroyPanics(t *testing.T) {
	obj := newTestObject()
	obj.AddRef()
	obj.Release()
	assert.Panics(t, func() { obj.AddRef() })
}

func TestObject_QueryInterface(t *testing.T) {
	obj := newTestObject()
	obj.AddRef()
	defer obj.Release()

	t.Run("declared interface acquires a reference", func(t *testing.T) {
		u, err := obj.QueryInterface(iidReader)
		require.NoError(t, err)
		assert.Equal(t, int32(2), obj.RefCount())
		u.Release()
		assert.Equal(t, int32(1), obj.RefCount())
	})

	t.Run("base identity is always available", func(t *testing.T) {
		u, err := obj.QueryInterface(IIDUnknown)
		require.NoError(t, err)
		u.Release()
	})

	t.Run("undeclared interface", func(t *testing.T) {
		u, err := obj.QueryInterface(iidOther)
		require.ErrorIs(t, err, ErrNoInterface)
		assert.Nil(t, u)
		assert.Equal(t, int32(1), obj.RefCount())
	})
}

func TestQuery(t *testing.T) {
	obj := newTestObject()
	obj.AddRef()
	defer obj.Release()

	r, err := Query[reader](obj, iidReader)
	require.NoError(t, err)
	assert.Equal(t, "data", r.ReadAll())
	r.Release()

	_, err = Query[reader](obj, iidOther)
	assert.ErrorIs(t, err, ErrNoInterface)

	_, err = Query[reader](nil, iidReader)
	assert.ErrorIs(t, err, ErrNoInterface)

	assert.Equal(t, int32(1), obj.RefCount())
}

func TestQuery_DeclaredButNotImplemented(t *testing.T) {
	l := &liar{}
	l.Init(l, nil, iidReader)
	l.AddRef()
	defer l.Release()

	_, err := Query[reader](l, iidReader)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInterface))
	assert.Equal(t, int32(1), l.RefCount(), "failed conversion must drop its reference")
}

func TestSameObject(t *testing.T) {
	a := newTestObject()
	a.AddRef()
	defer a.Release()
	b := newTestObject()
	b.AddRef()
	defer b.Release()

	r, err := Query[reader](a, iidReader)
	require.NoError(t, err)
	defer r.Release()
	s, err := Query[sizer](a, iidSizer)
	require.NoError(t, err)
	defer s.Release()

	assert.True(t, SameObject(r, s))
	assert.False(t, SameObject(r, b))
	assert.True(t, SameObject(nil, nil))
	assert.False(t, SameObject(a, nil))
	assert.Equal(t, int32(3), a.RefCount())
}

func TestSupports(t *testing.T) {
	obj := newTestObject()
	obj.AddRef()
	defer obj.Release()

	assert.True(t, Supports(obj, iidSizer))
	assert.False(t, Supports(obj, iidOther))
	assert.False(t, Supports(nil, iidSizer))
	assert.Equal(t, int32(1), obj.RefCount())
}
