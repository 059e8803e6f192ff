package tasks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/infracollect/archivekit/internal/archive"
)

// Filter selects files for a compress task with a CEL expression over
// name (string), size (uint), dir (bool) and mtime (timestamp).
type Filter struct {
	expr    string
	program cel.Program
}

var filterEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("size", cel.UintType),
		cel.Variable("dir", cel.BoolType),
		cel.Variable("mtime", cel.TimestampType),
	)
})

// NewFilter compiles expr. An empty expression yields a nil filter, which
// matches everything.
func NewFilter(expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	env, err := filterEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create filter environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("filter %q must evaluate to a bool, got %s", expr, out)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter %q: %w", expr, err)
	}

	return &Filter{expr: expr, program: program}, nil
}

func (f *Filter) Match(e archive.FileEntry) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, _, err := f.program.Eval(map[string]any{
		"name":  e.ArchiveName(),
		"size":  e.Size,
		"dir":   e.Dir,
		"mtime": e.MTime,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter %q for %s: %w", f.expr, e.ArchiveName(), err)
	}

	match, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T for %s, expected bool", f.expr, out.Value(), e.ArchiveName())
	}
	return match, nil
}

func (f *Filter) String() string {
	if f == nil {
		return "true"
	}
	return f.expr
}
