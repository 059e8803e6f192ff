package variant

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/infracollect/archivekit/pkg/capability"
	"golang.org/x/text/cases"
)

// CompareOptions tunes Compare.
type CompareOptions struct {
	// CaseInsensitive folds string payloads before comparing them.
	CaseInsensitive bool
}

// Compare orders a and b by kind first and payload second. It returns -1, 0
// or +1. Objects are equal when they denote the same underlying object and
// are otherwise ordered by address.
func Compare(a, b Variant, opts CompareOptions) int {
	if a.kind != b.kind {
		return cmp.Compare(a.kind, b.kind)
	}

	switch a.kind {
	case KindEmpty:
		return 0
	case KindBool, KindUint8, KindUint16, KindUint32, KindUint64:
		return cmp.Compare(a.bits, b.bits)
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return cmp.Compare(int64(a.bits), int64(b.bits))
	case KindFloat32, KindFloat64:
		fa, _ := a.AsFloat64()
		fb, _ := b.AsFloat64()
		return cmp.Compare(fa, fb)
	case KindDate:
		return a.date.Compare(b.date)
	case KindString:
		if opts.CaseInsensitive {
			return strings.Compare(cases.Fold().String(a.str), cases.Fold().String(b.str))
		}
		return strings.Compare(a.str, b.str)
	case KindObject:
		ao, bo := a.object(), b.object()
		if capability.SameObject(ao, bo) {
			return 0
		}
		return strings.Compare(fmt.Sprintf("%p", ao), fmt.Sprintf("%p", bo))
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i], opts); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.arr), len(b.arr))
	case KindBlob:
		return bytes.Compare(a.blob, b.blob)
	default:
		return 0
	}
}

// Equal is Compare(a, b, opts) == 0.
func Equal(a, b Variant, opts CompareOptions) bool {
	return Compare(a, b, opts) == 0
}
