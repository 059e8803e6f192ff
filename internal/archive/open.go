package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/infracollect/archivekit/internal/streams"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/infracollect/archivekit/pkg/variant"
	"go.uber.org/zap"
)

// openCallback is handed to InArchive.Open. It refuses passwords.
type openCallback struct {
	capability.Object
	op *operation
}

var (
	_ engine.ArchiveOpenCallback   = (*openCallback)(nil)
	_ engine.CryptoGetTextPassword = (*openCallback)(nil)
)

func newOpenCallback(op *operation) *openCallback {
	cb := &openCallback{op: op}
	cb.Init(cb, nil, engine.IIDArchiveOpenCallback, engine.IIDCryptoGetTextPassword)
	return cb
}

func (cb *openCallback) OpenSetTotal(files, bytes *uint64) error {
	return cb.op.active()
}

func (cb *openCallback) OpenSetCompleted(files, bytes *uint64) error {
	return cb.op.active()
}

func (cb *openCallback) CryptoGetTextPassword() (string, error) {
	cb.op.logger.Debug("refusing password request")
	return "", capability.ErrAbort
}

// Open lists the archive at path. onItem is called with the archive path and
// size -1 when the engine reports one, then once per item. The reader is
// closed before Open returns.
func (a *Archive) Open(ctx context.Context, path string, format formats.Format, onItem ItemFunc) error {
	op, err := a.newOperation(ctx, "open", path, format)
	if err != nil {
		return err
	}

	reader, err := a.openReader(op, path, format)
	if err != nil {
		return op.finish(err)
	}
	defer a.closeReader(op, reader)

	return op.finish(listItems(op, reader, onItem))
}

// openReader acquires path, creates the reader and opens it. On success the
// operation is enumerating and the caller owns one reference on the reader.
func (a *Archive) openReader(op *operation, path string, format formats.Format) (engine.InArchive, error) {
	file, err := a.fs.OpenForRead(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResource, err)
	}
	stream := streams.NewReadStream(file)
	stream.AddRef()
	// the reader acquires its own reference if it keeps the stream
	defer stream.Release()

	reader, err := a.factory.NewReader(format)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s reader: %w", format, err)
	}

	if err := op.enumerate(); err != nil {
		reader.Release()
		return nil, err
	}

	cb := newOpenCallback(op)
	cb.AddRef()
	defer cb.Release()

	if err := reader.Open(stream, 0, cb); err != nil {
		a.closeReader(op, reader)
		return nil, fmt.Errorf("%w: failed to open %s as %s: %w", ErrProtocol, path, format, err)
	}

	op.logger.Debug("opened archive")
	return reader, nil
}

func (a *Archive) closeReader(op *operation, reader engine.InArchive) {
	if err := reader.Close(); err != nil {
		op.logger.Warn("failed to close archive reader", zap.Error(err))
	}
	reader.Release()
}

func listItems(op *operation, reader engine.InArchive, onItem ItemFunc) error {
	if onItem == nil {
		onItem = func(string, int64) {}
	}

	prop, err := reader.GetArchiveProperty(engine.PropPath)
	if err == nil {
		if name, ok := prop.AsString(); ok {
			onItem(name, -1)
		}
		prop.Reset()
	}

	count, err := reader.NumberOfItems()
	if err != nil {
		return fmt.Errorf("%w: failed to count items: %w", ErrProtocol, err)
	}

	for i := range count {
		onItem(stringProperty(op, reader, i, engine.PropPath), int64(uint64Property(op, reader, i, engine.PropSize)))
	}
	return nil
}

// Item properties. A property the engine fails to report, or reports with
// an unexpected kind, yields the zero value.

func readProperty(op *operation, reader engine.InArchive, index uint32, id engine.PropID) variant.Variant {
	prop, err := reader.GetProperty(index, id)
	if err != nil {
		op.logger.Debug("engine failed to report item property",
			zap.Uint32("item_index", index),
			zap.Stringer("property", id),
			zap.Error(err),
		)
		return variant.Empty()
	}
	return prop
}

func stringProperty(op *operation, reader engine.InArchive, index uint32, id engine.PropID) string {
	prop := readProperty(op, reader, index, id)
	defer prop.Reset()
	s, _ := prop.AsString()
	return s
}

func uint64Property(op *operation, reader engine.InArchive, index uint32, id engine.PropID) uint64 {
	prop := readProperty(op, reader, index, id)
	defer prop.Reset()
	n, _ := prop.AsUint64()
	return n
}

func uint32Property(op *operation, reader engine.InArchive, index uint32, id engine.PropID) uint32 {
	prop := readProperty(op, reader, index, id)
	defer prop.Reset()
	n, _ := prop.AsUint32()
	return n
}

func boolProperty(op *operation, reader engine.InArchive, index uint32, id engine.PropID) bool {
	prop := readProperty(op, reader, index, id)
	defer prop.Reset()
	b, _ := prop.AsBool()
	return b
}

func timeProperty(op *operation, reader engine.InArchive, index uint32, id engine.PropID) time.Time {
	prop := readProperty(op, reader, index, id)
	defer prop.Reset()
	t, _ := prop.AsTime()
	return t
}
