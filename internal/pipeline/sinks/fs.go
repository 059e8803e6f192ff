package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/pipeline"
	"github.com/spf13/afero"
)

type FilesystemSink struct {
	fs afero.Fs
}

func NewFilesystemSink(fs afero.Fs) pipeline.Sink {
	return &FilesystemSink{fs: fs}
}

// NewFilesystemSinkFromPath roots a sink at dir on fs, creating dir if
// needed.
func NewFilesystemSinkFromPath(fs afero.Fs, dir string) (pipeline.Sink, error) {
	cleanPath := filepath.Clean(dir)
	if err := fs.MkdirAll(cleanPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cleanPath, err)
	}

	return NewFilesystemSink(afero.NewBasePathFs(fs, cleanPath)), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.fs.Name())
}

func (s *FilesystemSink) Kind() string {
	return "filesystem"
}

func (s *FilesystemSink) Write(_ context.Context, path string, data io.Reader) (err error) {
	target := hostfs.Join("/", path)
	if path == "" || target == "" {
		return fmt.Errorf("refusing to write outside of the sink: %s", path)
	}

	if dir := filepath.Dir(target); dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := s.fs.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err = io.Copy(f, data); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}

func (s *FilesystemSink) Close(context.Context) error {
	return nil
}
