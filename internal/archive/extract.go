package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/streams"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"go.uber.org/zap"
)

// extractItem is what the callback knows about the item being extracted.
type extractItem struct {
	index      uint32
	name       string
	dest       string
	size       uint64
	dir        bool
	attributes uint32
	mtime      time.Time
	stream     *streams.WriteStream
}

type dirTime struct {
	path  string
	mtime time.Time
}

// extractCallback is handed to InArchive.Extract. It holds a reference on
// the reader for as long as the engine holds the callback.
type extractCallback struct {
	capability.Object

	op          *operation
	fs          *hostfs.FS
	reader      engine.InArchive
	archivePath string
	root        string
	progress    Progress

	mu       sync.Mutex
	item     extractItem
	dirTimes []dirTime
	errs     []error
}

var (
	_ engine.ArchiveExtractCallback = (*extractCallback)(nil)
	_ engine.CryptoGetTextPassword  = (*extractCallback)(nil)
)

func newExtractCallback(op *operation, fs *hostfs.FS, reader engine.InArchive, archivePath, root string, progress Progress) *extractCallback {
	reader.AddRef()
	cb := &extractCallback{
		op:          op,
		fs:          fs,
		reader:      reader,
		archivePath: archivePath,
		root:        root,
		progress:    progress,
	}
	cb.Init(cb, cb.destroy, engine.IIDArchiveExtractCallback, engine.IIDCryptoGetTextPassword)
	return cb
}

func (cb *extractCallback) destroy() {
	cb.releaseStream()
	cb.reader.Release()
}

func (cb *extractCallback) SetTotal(total uint64) error {
	if err := cb.op.active(); err != nil {
		return err
	}
	cb.progress.Start(cb.archivePath, total)
	return nil
}

func (cb *extractCallback) SetCompleted(completed uint64) error {
	return cb.op.active()
}

func (cb *extractCallback) GetStream(index uint32, mode engine.AskMode) (engine.SequentialOutStream, error) {
	if err := cb.op.active(); err != nil {
		return nil, err
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.releaseStreamLocked()
	cb.item = extractItem{index: index}
	if mode != engine.AskExtract {
		return nil, nil
	}

	item := extractItem{
		index:      index,
		name:       stringProperty(cb.op, cb.reader, index, engine.PropPath),
		attributes: uint32Property(cb.op, cb.reader, index, engine.PropAttrib),
		dir:        boolProperty(cb.op, cb.reader, index, engine.PropIsDir),
		mtime:      timeProperty(cb.op, cb.reader, index, engine.PropMTime),
		size:       uint64Property(cb.op, cb.reader, index, engine.PropSize),
	}
	if item.attributes&engine.AttribDirectory != 0 {
		item.dir = true
	}

	logger := cb.op.logger.With(zap.Uint32("item_index", index), zap.String("item_path", item.name))

	if item.name == "" {
		logger.Debug("item has no path, skipping its data")
		cb.item = item
		return nil, nil
	}

	dest := hostfs.Join(cb.root, item.name)
	if dest == "" {
		logger.Warn("skipping item whose path leaves the destination")
		item.name = ""
		cb.item = item
		return nil, nil
	}
	item.dest = dest

	if item.dir {
		if err := cb.fs.EnsureDirectoryTree(dest); err != nil {
			return nil, cb.failLocked(fmt.Errorf("%w: %w", ErrResource, err))
		}
		if !item.mtime.IsZero() {
			cb.dirTimes = append(cb.dirTimes, dirTime{path: dest, mtime: item.mtime})
		}
		cb.item = item
		return nil, nil
	}

	if err := cb.fs.EnsureDirectoryTree(hostfs.Parent(dest)); err != nil {
		return nil, cb.failLocked(fmt.Errorf("%w: %w", ErrResource, err))
	}
	file, err := cb.fs.OpenForWrite(dest)
	if err != nil {
		return nil, cb.failLocked(fmt.Errorf("%w: %w", ErrResource, err))
	}

	// one reference for the engine and one kept until the item completes
	item.stream = streams.NewWriteStream(file)
	item.stream.AddRef()
	item.stream.AddRef()
	cb.item = item

	logger.Debug("extracting item", zap.String("dest_path", dest), zap.Uint64("bytes", item.size))
	return item.stream, nil
}

func (cb *extractCallback) PrepareOperation(mode engine.AskMode) error {
	return cb.op.active()
}

func (cb *extractCallback) SetOperationResult(result engine.OperationResult) error {
	if err := cb.op.active(); err != nil {
		return err
	}

	cb.mu.Lock()
	item := cb.item
	closeErr := cb.releaseStreamLocked()
	cb.item = extractItem{}
	cb.mu.Unlock()

	if result != engine.ResultOK {
		cb.op.logger.Warn("engine reported item failure",
			zap.Uint32("item_index", item.index),
			zap.String("item_path", item.name),
			zap.Stringer("result", result),
		)
	}
	if closeErr != nil {
		cb.op.logger.Warn("failed to close extracted file", zap.String("dest_path", item.dest), zap.Error(closeErr))
	}

	if item.stream != nil && result == engine.ResultOK {
		cb.restoreMetadata(item)
	}

	if item.name == "" {
		cb.progress.Progressed(cb.root, 0)
		return nil
	}
	cb.progress.Progressed(item.dest, item.size)
	return nil
}

func (cb *extractCallback) CryptoGetTextPassword() (string, error) {
	cb.op.logger.Debug("refusing password request")
	return "", capability.ErrAbort
}

func (cb *extractCallback) restoreMetadata(item extractItem) {
	if perm, ok := engine.PermFromAttributes(item.attributes); ok && perm != 0 {
		if err := cb.fs.Chmod(item.dest, perm); err != nil {
			cb.op.logger.Debug("failed to restore permissions", zap.Error(err))
		}
	}
	if !item.mtime.IsZero() {
		if err := cb.fs.Chtimes(item.dest, item.mtime, item.mtime); err != nil {
			cb.op.logger.Debug("failed to restore modification time", zap.Error(err))
		}
	}
}

// restoreDirTimes runs once every item is written, since writing into a
// directory changes its modification time.
func (cb *extractCallback) restoreDirTimes() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	for i := len(cb.dirTimes) - 1; i >= 0; i-- {
		d := cb.dirTimes[i]
		if err := cb.fs.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			cb.op.logger.Debug("failed to restore directory time", zap.String("dest_path", d.path), zap.Error(err))
		}
	}
}

func (cb *extractCallback) failLocked(err error) error {
	cb.errs = append(cb.errs, err)
	return err
}

// err returns the host failures recorded while extracting.
func (cb *extractCallback) err() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return errors.Join(cb.errs...)
}

func (cb *extractCallback) releaseStream() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.releaseStreamLocked()
}

// releaseStreamLocked drops the callback's reference on the current output
// stream and returns the close error if that destroyed it.
func (cb *extractCallback) releaseStreamLocked() error {
	s := cb.item.stream
	if s == nil {
		return nil
	}
	cb.item.stream = nil
	if s.Release() == 0 {
		return s.CloseErr()
	}
	return nil
}

// Extract writes every item of the archive at path below root.
func (a *Archive) Extract(ctx context.Context, path string, format formats.Format, root string, progress Progress) error {
	op, err := a.newOperation(ctx, "extract", path, format)
	if err != nil {
		return err
	}
	progress = progressOrNoop(progress)

	reader, err := a.openReader(op, path, format)
	if err != nil {
		return op.finish(err)
	}
	defer a.closeReader(op, reader)

	cb := newExtractCallback(op, a.fs, reader, path, root, progress)
	cb.AddRef()
	defer cb.Release()

	if err := reader.Extract(nil, false, cb); err != nil {
		return op.finish(errors.Join(
			fmt.Errorf("%w: failed to extract %s: %w", ErrProtocol, path, err),
			cb.err(),
		))
	}
	if err := cb.err(); err != nil {
		return op.finish(err)
	}

	cb.restoreDirTimes()
	op.logger.Info("extracted archive", zap.String("dest_path", root))
	return op.finish(nil)
}
