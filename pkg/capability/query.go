package capability

import "fmt"

// Query asks obj for iid and converts the result to the Go capability type T.
// On success the caller owns one reference on the result.
func Query[T any](obj Unknown, iid GUID) (T, error) {
	var zero T
	if obj == nil {
		return zero, ErrNoInterface
	}

	u, err := obj.QueryInterface(iid)
	if err != nil {
		return zero, err
	}

	typed, ok := u.(T)
	if !ok {
		u.Release()
		return zero, fmt.Errorf("%w: object %T declares %s but does not implement it", ErrNoInterface, u, iid)
	}

	return typed, nil
}

// Supports reports whether obj answers to iid, without keeping a reference.
func Supports(obj Unknown, iid GUID) bool {
	if obj == nil {
		return false
	}
	u, err := obj.QueryInterface(iid)
	if err != nil {
		return false
	}
	u.Release()
	return true
}

// SameObject reports whether a and b denote the same underlying object. Both
// are asked for their canonical IIDUnknown view, which is what gets compared.
func SameObject(a, b Unknown) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ua, err := a.QueryInterface(IIDUnknown)
	if err != nil {
		return false
	}
	defer ua.Release()

	ub, err := b.QueryInterface(IIDUnknown)
	if err != nil {
		return false
	}
	defer ub.Release()

	return ua == ub
}
