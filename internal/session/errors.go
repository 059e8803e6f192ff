package session

import (
	"errors"
	"fmt"

	"github.com/infracollect/archivekit/pkg/capability"
)

// ErrClosed is returned by a session used after Close.
var ErrClosed = errors.New("session closed")

// ModuleLoadError reports a broken engine install: the module could not be
// loaded or does not export a usable entry point.
type ModuleLoadError struct {
	Path string
	// Symbol is set when the module loaded but the symbol was missing or had
	// the wrong type.
	Symbol string
	Err    error
}

func (e *ModuleLoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("engine module %s: invalid symbol %s: %v", e.Path, e.Symbol, e.Err)
	}
	return fmt.Sprintf("failed to load engine module %s: %v", e.Path, e.Err)
}

func (e *ModuleLoadError) Unwrap() error {
	return e.Err
}

// CreationError reports that the engine could not create an object.
type CreationError struct {
	Class     capability.GUID
	Interface capability.GUID
	Err       error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create engine object %s (interface %s): %v", e.Class, e.Interface, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}
