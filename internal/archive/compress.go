package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/streams"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/infracollect/archivekit/pkg/variant"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// updateCallback is handed to OutArchive.UpdateItems. Every item is new:
// the writer always builds the archive from scratch.
type updateCallback struct {
	capability.Object

	op       *operation
	fs       *hostfs.FS
	files    []FileEntry
	dest     string
	progress Progress
}

var (
	_ engine.ArchiveUpdateCallback  = (*updateCallback)(nil)
	_ engine.CryptoGetTextPassword2 = (*updateCallback)(nil)
	_ engine.CompressProgressInfo   = (*updateCallback)(nil)
)

func newUpdateCallback(op *operation, fs *hostfs.FS, files []FileEntry, dest string, progress Progress) *updateCallback {
	cb := &updateCallback{
		op:       op,
		fs:       fs,
		files:    files,
		dest:     dest,
		progress: progress,
	}
	cb.Init(cb, nil,
		engine.IIDArchiveUpdateCallback,
		engine.IIDCryptoGetTextPassword2,
		engine.IIDCompressProgressInfo,
	)
	return cb
}

func (cb *updateCallback) SetTotal(total uint64) error {
	if err := cb.op.active(); err != nil {
		return err
	}
	cb.progress.Start(cb.dest, total)
	return nil
}

func (cb *updateCallback) SetCompleted(completed uint64) error {
	if err := cb.op.active(); err != nil {
		return err
	}
	cb.progress.Progressed(cb.dest, completed)
	return nil
}

func (cb *updateCallback) entry(index uint32) (FileEntry, error) {
	if int(index) >= len(cb.files) {
		return FileEntry{}, fmt.Errorf("%w: item %d out of range (%d items)", capability.ErrInvalidArg, index, len(cb.files))
	}
	return cb.files[index], nil
}

func (cb *updateCallback) GetUpdateItemInfo(index uint32) (engine.UpdateItemInfo, error) {
	if err := cb.op.active(); err != nil {
		return engine.UpdateItemInfo{}, err
	}
	if _, err := cb.entry(index); err != nil {
		return engine.UpdateItemInfo{}, err
	}
	return engine.UpdateItemInfo{
		NewData:        true,
		NewProperties:  true,
		IndexInArchive: engine.NoArchiveIndex,
	}, nil
}

func (cb *updateCallback) GetProperty(index uint32, prop engine.PropID) (variant.Variant, error) {
	if err := cb.op.active(); err != nil {
		return variant.Empty(), err
	}
	if prop == engine.PropIsAnti {
		return variant.Bool(false), nil
	}

	e, err := cb.entry(index)
	if err != nil {
		return variant.Empty(), err
	}

	switch prop {
	case engine.PropPath:
		return variant.Str(e.ArchiveName()), nil
	case engine.PropIsDir:
		return variant.Bool(e.Dir), nil
	case engine.PropSize:
		return variant.Uint64(e.Size), nil
	case engine.PropAttrib:
		return variant.Uint32(e.Attributes), nil
	case engine.PropCTime:
		return dateOrEmpty(e.CTime), nil
	case engine.PropATime:
		return dateOrEmpty(e.ATime), nil
	case engine.PropMTime:
		return dateOrEmpty(e.MTime), nil
	default:
		return variant.Empty(), nil
	}
}

func dateOrEmpty(t time.Time) variant.Variant {
	if t.IsZero() {
		return variant.Empty()
	}
	return variant.Date(t)
}

func (cb *updateCallback) GetStream(index uint32) (engine.SequentialInStream, error) {
	if err := cb.op.active(); err != nil {
		return nil, err
	}
	e, err := cb.entry(index)
	if err != nil {
		return nil, err
	}
	if e.Dir {
		return nil, nil
	}

	file, err := cb.fs.OpenForRead(e.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResource, err)
	}
	s := streams.NewReadStream(file)
	s.AddRef()

	cb.op.logger.Debug("adding item",
		zap.Uint32("item_index", index),
		zap.String("item_path", e.ArchiveName()),
		zap.Uint64("bytes", e.Size),
	)
	return s, nil
}

func (cb *updateCallback) SetOperationResult(result engine.OperationResult) error {
	if err := cb.op.active(); err != nil {
		return err
	}
	if result != engine.ResultOK {
		cb.op.logger.Warn("engine reported item failure", zap.Stringer("result", result))
	}
	return nil
}

func (cb *updateCallback) CryptoGetTextPassword2() (bool, string, error) {
	return false, "", nil
}

func (cb *updateCallback) SetRatioInfo(inSize, outSize *uint64) error {
	return nil
}

// Compress builds a new archive at dest from files, in order.
func (a *Archive) Compress(ctx context.Context, dest string, format formats.Format, files []FileEntry, progress Progress) error {
	op, err := a.newOperation(ctx, "compress", dest, format)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return op.finish(ErrEmptyFileList)
	}
	progress = progressOrNoop(progress)

	writer, err := a.factory.NewWriter(format)
	if err != nil {
		return op.finish(fmt.Errorf("failed to create %s writer: %w", format, err))
	}
	defer writer.Release()

	file, err := a.fs.OpenForWrite(dest)
	if err != nil {
		return op.finish(fmt.Errorf("%w: %w", ErrResource, err))
	}
	stream := streams.NewWriteStream(file)
	stream.AddRef()

	if err := op.enumerate(); err != nil {
		stream.Release()
		return op.finish(err)
	}

	cb := newUpdateCallback(op, a.fs, files, dest, progress)
	cb.AddRef()
	defer cb.Release()

	updateErr := writer.UpdateItems(stream, uint32(len(files)), cb)
	if updateErr != nil {
		updateErr = fmt.Errorf("%w: failed to write %s: %w", ErrProtocol, dest, updateErr)
	}

	if stream.Release() == 0 {
		if err := stream.CloseErr(); err != nil {
			updateErr = errors.Join(updateErr, fmt.Errorf("%w: failed to close %s: %w", ErrResource, dest, err))
		}
	}

	if updateErr != nil {
		if err := a.fs.Fs().Remove(dest); err != nil {
			op.logger.Debug("failed to remove partial archive", zap.Error(err))
		}
		return op.finish(updateErr)
	}

	op.logger.Info("compressed archive",
		zap.Int("items", len(files)),
		zap.Uint64("bytes", lo.SumBy(files, func(e FileEntry) uint64 { return e.Size })),
	)
	return op.finish(nil)
}
