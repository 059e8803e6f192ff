// Package archive drives an engine through the open, extract and compress
// protocols.
//
// Each call builds a short-lived operation that owns the callback objects
// handed to the engine, and blocks until the engine is done with them.
// Operations check their context before starting; once the engine has been
// called they run to completion.
package archive

import (
	"errors"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"go.uber.org/zap"
)

var (
	// ErrResource reports a host file that could not be opened or created.
	ErrResource = errors.New("host resource error")
	// ErrProtocol reports an engine call that failed, or a callback made
	// outside of a running operation.
	ErrProtocol = errors.New("engine protocol error")
	// ErrEmptyFileList is returned by Compress when there is nothing to add.
	ErrEmptyFileList = errors.New("empty file list")
)

// FileEntry describes one host file to add to an archive.
type FileEntry = hostfs.FileEntry

// ItemFunc receives the archive path with size -1 once the archive is
// identified, then each item's path and size in enumeration order.
type ItemFunc func(name string, size int64)

// Progress receives progress from Extract and Compress.
type Progress interface {
	Start(path string, total uint64)
	Progressed(path string, done uint64)
}

// ProgressFuncs adapts plain functions to Progress. Nil fields are skipped.
type ProgressFuncs struct {
	OnStart      func(path string, total uint64)
	OnProgressed func(path string, done uint64)
}

func (p ProgressFuncs) Start(path string, total uint64) {
	if p.OnStart != nil {
		p.OnStart(path, total)
	}
}

func (p ProgressFuncs) Progressed(path string, done uint64) {
	if p.OnProgressed != nil {
		p.OnProgressed(path, done)
	}
}

// Factory creates archive handlers. *session.Session implements it.
type Factory interface {
	NewReader(format formats.Format) (engine.InArchive, error)
	NewWriter(format formats.Format) (engine.OutArchive, error)
}

// Archive runs operations against one engine and one host filesystem. It
// holds no per-operation state and may be shared.
type Archive struct {
	factory Factory
	fs      *hostfs.FS
	logger  *zap.Logger
}

func New(factory Factory, fs *hostfs.FS, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fs == nil {
		fs = hostfs.OS()
	}
	return &Archive{
		factory: factory,
		fs:      fs,
		logger:  logger.Named("archive"),
	}
}

func progressOrNoop(p Progress) Progress {
	if p == nil {
		return ProgressFuncs{}
	}
	return p
}
