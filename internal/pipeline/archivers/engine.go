// Package archivers builds result bundles.
package archivers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/infracollect/archivekit/internal/archive"
	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Compressor is the part of *archive.Archive the archiver needs.
type Compressor interface {
	Compress(ctx context.Context, dest string, format formats.Format, files []archive.FileEntry, progress archive.Progress) error
}

// EngineArchiver stages files in a directory and has the engine compress
// them into one bundle on Close.
type EngineArchiver struct {
	compressor Compressor
	fs         *hostfs.FS
	format     formats.Format
	staging    string
	logger     *zap.Logger

	mu     sync.Mutex
	files  []archive.FileEntry
	closed bool
}

// NewEngineArchiver stages files under staging on fs, which must be the
// filesystem the compressor reads from. staging is removed on Close.
func NewEngineArchiver(compressor Compressor, fs *hostfs.FS, format formats.Format, staging string, logger *zap.Logger) (*EngineArchiver, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported bundle format %s", format)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := fs.EnsureDirectoryTree(staging); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &EngineArchiver{
		compressor: compressor,
		fs:         fs,
		format:     format,
		staging:    staging,
		logger:     logger.Named("archiver"),
	}, nil
}

func (a *EngineArchiver) Extension() string {
	return formats.Lookup(a.format).Extension
}

func (a *EngineArchiver) AddFile(_ context.Context, filename string, data io.Reader) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("archiver is closed")
	}

	name := path.Clean(filename)
	target := hostfs.Join(a.staging, name)
	if filename == "" || target == "" {
		return fmt.Errorf("invalid file name %q", filename)
	}
	if err := a.fs.EnsureDirectoryTree(hostfs.Parent(target)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	f, err := a.fs.OpenForWrite(target)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}
	size, err := io.Copy(f, data)
	if err = errors.Join(err, f.Close()); err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}

	info, err := a.fs.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat staged %s: %w", name, err)
	}

	a.files = append(a.files, archive.FileEntry{
		Path:  target,
		Name:  name,
		Size:  uint64(size),
		CTime: info.ModTime(),
		ATime: info.ModTime(),
		MTime: info.ModTime(),
	})
	return nil
}

// Close compresses the staged files and returns the bundle's content.
func (a *EngineArchiver) Close(ctx context.Context) (io.Reader, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, errors.New("archiver is closed")
	}
	a.closed = true
	defer a.cleanup()

	dest := a.staging + a.Extension()
	if err := a.compressor.Compress(ctx, dest, a.format, a.files, nil); err != nil {
		return nil, fmt.Errorf("failed to compress bundle: %w", err)
	}
	defer func() {
		if err := a.fs.Fs().Remove(dest); err != nil {
			a.logger.Warn("failed to remove bundle", zap.String("path", dest), zap.Error(err))
		}
	}()

	data, err := afero.ReadFile(a.fs.Fs(), dest)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	a.logger.Debug("built bundle",
		zap.Stringer("format", a.format),
		zap.Int("files", len(a.files)),
		zap.Int("bytes", len(data)),
	)
	return bytes.NewReader(data), nil
}

func (a *EngineArchiver) cleanup() {
	if err := a.fs.Fs().RemoveAll(a.staging); err != nil {
		a.logger.Warn("failed to remove staging directory", zap.String("path", a.staging), zap.Error(err))
	}
}
