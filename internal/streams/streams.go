// Package streams adapts host files to the engine's stream capabilities.
//
// Each adapter exclusively owns its file and closes it when its last
// reference is released, so the engine can hold a stream for as long as it
// needs independently of the code that opened the file.
package streams

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/spf13/afero"
)

type fileOwner struct {
	file     afero.File
	once     sync.Once
	closeErr error
}

func (o *fileOwner) close() {
	o.once.Do(func() {
		o.closeErr = o.file.Close()
	})
}

// Name returns the name of the underlying file.
func (o *fileOwner) Name() string {
	return o.file.Name()
}

// CloseErr returns the error from closing the file, once the adapter has
// been destroyed.
func (o *fileOwner) CloseErr() error {
	return o.closeErr
}

// ReadStream exposes a host file as SequentialInStream, InStream and
// StreamGetSize.
type ReadStream struct {
	capability.Object
	fileOwner
}

var (
	_ engine.InStream      = (*ReadStream)(nil)
	_ engine.StreamGetSize = (*ReadStream)(nil)
)

func NewReadStream(file afero.File) *ReadStream {
	s := &ReadStream{fileOwner: fileOwner{file: file}}
	s.Init(s, s.close, engine.IIDSequentialInStream, engine.IIDInStream, engine.IIDStreamGetSize)
	return s
}

// Read returns 0 and a nil error at end of file.
func (s *ReadStream) Read(p []byte) (int, error) {
	n, err := s.file.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (s *ReadStream) Seek(offset int64, whence int) (int64, error) {
	return s.file.Seek(offset, whence)
}

func (s *ReadStream) GetSize() (uint64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", s.file.Name(), err)
	}
	return uint64(info.Size()), nil
}

// WriteStream exposes a host file as SequentialOutStream and OutStream.
type WriteStream struct {
	capability.Object
	fileOwner
}

var _ engine.OutStream = (*WriteStream)(nil)

func NewWriteStream(file afero.File) *WriteStream {
	s := &WriteStream{fileOwner: fileOwner{file: file}}
	s.Init(s, s.close, engine.IIDSequentialOutStream, engine.IIDOutStream)
	return s
}

func (s *WriteStream) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

func (s *WriteStream) Seek(offset int64, whence int) (int64, error) {
	return s.file.Seek(offset, whence)
}

// SetSize truncates or extends the file.
func (s *WriteStream) SetSize(size uint64) error {
	if err := s.file.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to resize %s: %w", s.file.Name(), err)
	}
	return nil
}
