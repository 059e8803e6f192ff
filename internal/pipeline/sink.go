package pipeline

import (
	"context"
	"io"
)

// Sink is a destination for encoded results.
type Sink interface {
	Named
	Closer
	Write(ctx context.Context, path string, data io.Reader) error
}

// Encoder turns a result into bytes.
type Encoder interface {
	EncodeResult(ctx context.Context, result Result) (io.Reader, error)
	// FileExtension returns the extension without the dot, e.g. "json".
	FileExtension() string
}

// Archiver gathers files into a single bundle.
type Archiver interface {
	AddFile(ctx context.Context, filename string, data io.Reader) error
	// Close builds the bundle and returns its content. The archiver cannot
	// be used afterwards.
	Close(ctx context.Context) (io.Reader, error)
	// Extension returns the bundle's file extension, e.g. ".zip".
	Extension() string
}
