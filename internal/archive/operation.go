package archive

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/infracollect/archivekit/pkg/formats"
	"go.uber.org/zap"
)

// State is the lifecycle of one operation.
type State int32

const (
	StateCreated State = iota
	StateItemsEnumerating
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateItemsEnumerating:
		return "items_enumerating"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateCreated:
		return to == StateItemsEnumerating || to == StateFailed
	case StateItemsEnumerating:
		return to == StateFinished || to == StateFailed
	default:
		return false
	}
}

// operation tracks one Open, Extract or Compress call. The engine may call
// back from its own threads, so the state is atomic.
type operation struct {
	kind   string
	path   string
	state  atomic.Int32
	logger *zap.Logger
}

func (a *Archive) newOperation(ctx context.Context, kind, path string, format formats.Format) (*operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to start %s of %s: %w", kind, path, err)
	}
	return &operation{
		kind: kind,
		path: path,
		logger: a.logger.With(
			zap.String("operation", kind),
			zap.String("archive_path", path),
			zap.Stringer("format", format),
		),
	}, nil
}

func (o *operation) State() State {
	return State(o.state.Load())
}

// transition moves from the expected state to the next one.
func (o *operation) transition(from, to State) error {
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("%w: disallowed transition %s -> %s", ErrProtocol, from, to)
	}
	if !o.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: invalid transition to %s: expected %s, got %s", ErrProtocol, to, from, o.State())
	}
	return nil
}

// enumerate marks the point where the engine starts calling back.
func (o *operation) enumerate() error {
	return o.transition(StateCreated, StateItemsEnumerating)
}

// active fails callbacks made before or after the engine call.
func (o *operation) active() error {
	if s := o.State(); s != StateItemsEnumerating {
		return fmt.Errorf("%w: %s callback while %s", ErrProtocol, o.kind, s)
	}
	return nil
}

// finish moves to Finished or Failed depending on err and returns err.
func (o *operation) finish(err error) error {
	from := o.State()
	if from.Terminal() {
		return err
	}

	to := StateFinished
	if err != nil {
		to = StateFailed
	}
	if terr := o.transition(from, to); terr != nil {
		err = errors.Join(err, terr)
	}

	if err != nil {
		o.logger.Debug("operation failed", zap.Error(err))
	} else {
		o.logger.Debug("operation finished")
	}
	return err
}
