package engine

import "github.com/infracollect/archivekit/pkg/capability"

// SequentialInStream is a forward-only byte source.
type SequentialInStream interface {
	capability.Unknown
	// Read fills p and returns the number of bytes read. 0 bytes with a nil
	// error means end of stream.
	Read(p []byte) (int, error)
}

// InStream is a seekable byte source. whence takes the io.Seek* values.
type InStream interface {
	SequentialInStream
	Seek(offset int64, whence int) (int64, error)
}

// StreamGetSize reports the total size of a stream.
type StreamGetSize interface {
	capability.Unknown
	GetSize() (uint64, error)
}

// SequentialOutStream is a forward-only byte sink. Writes may be partial.
type SequentialOutStream interface {
	capability.Unknown
	Write(p []byte) (int, error)
}

// OutStream is a seekable, resizable byte sink.
type OutStream interface {
	SequentialOutStream
	Seek(offset int64, whence int) (int64, error)
	SetSize(size uint64) error
}
