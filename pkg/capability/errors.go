package capability

import "errors"

// Status values exchanged across the engine boundary. Engines may wrap them;
// callers compare with errors.Is.
var (
	ErrNoInterface       = errors.New("no such interface")
	ErrAbort             = errors.New("operation aborted")
	ErrInvalidArg        = errors.New("invalid argument")
	ErrNotImplemented    = errors.New("not implemented")
	ErrFail              = errors.New("unspecified failure")
	ErrClassNotAvailable = errors.New("class not available")
)
