package runner

import (
	"fmt"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/tasks"
)

// ResolvedSpec holds a kind identifier and the spec for that kind.
type ResolvedSpec struct {
	Kind string
	Spec any
}

// ResolveTaskSpec extracts the kind and spec from a v1.Task. Exactly one
// task type must be set.
func ResolveTaskSpec(t v1.Task) (ResolvedSpec, error) {
	var resolved []ResolvedSpec
	if t.List != nil {
		resolved = append(resolved, ResolvedSpec{Kind: tasks.ListStepKind, Spec: *t.List})
	}
	if t.Extract != nil {
		resolved = append(resolved, ResolvedSpec{Kind: tasks.ExtractStepKind, Spec: *t.Extract})
	}
	if t.Compress != nil {
		resolved = append(resolved, ResolvedSpec{Kind: tasks.CompressStepKind, Spec: *t.Compress})
	}

	switch len(resolved) {
	case 0:
		return ResolvedSpec{}, fmt.Errorf("task %q has no type specified", t.ID)
	case 1:
		return resolved[0], nil
	default:
		return ResolvedSpec{}, fmt.Errorf("task %q has more than one type specified", t.ID)
	}
}
