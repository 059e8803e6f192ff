package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/infracollect/archivekit/pkg/capability"
)

type streamReader struct {
	s SequentialInStream
}

// NewReader adapts s to io.Reader, turning the engine's empty read into
// io.EOF.
func NewReader(s SequentialInStream) io.Reader {
	return &streamReader{s: s}
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := r.s.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

type streamWriter struct {
	s SequentialOutStream
}

// NewWriter adapts s to io.Writer, looping over partial writes.
func NewWriter(s SequentialOutStream) io.Writer {
	return &streamWriter{s: s}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	return WriteFull(w.s, p)
}

// WriteFull writes all of p to s, looping while s accepts partial writes.
func WriteFull(s SequentialOutStream, p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := s.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

type streamReaderAt struct {
	mu sync.Mutex
	s  InStream
}

// NewReaderAt adapts a seekable stream to io.ReaderAt. Calls are serialized
// because every read moves the stream position.
func NewReaderAt(s InStream) io.ReaderAt {
	return &streamReaderAt{s: s}
}

func (r *streamReaderAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.s.Seek(off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to %d: %w", off, err)
	}
	n, err := io.ReadFull(NewReader(r.s), p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

// StreamSize returns the size of s, asking for StreamGetSize first and
// falling back to seeking to the end. The position is restored.
func StreamSize(s InStream) (int64, error) {
	if sizer, err := capability.Query[StreamGetSize](s, IIDStreamGetSize); err == nil {
		defer sizer.Release()
		size, err := sizer.GetSize()
		if err != nil {
			return 0, fmt.Errorf("failed to get stream size: %w", err)
		}
		return int64(size), nil
	}

	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to get stream position: %w", err)
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to seek to end: %w", err)
	}
	if _, err := s.Seek(pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to restore stream position: %w", err)
	}
	return end, nil
}
