package refengine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/variant"
)

// entry is one indexed archive item.
type entry struct {
	path      string
	dir       bool
	size      uint64
	sizeKnown bool
	mtime     time.Time
	mode      fs.FileMode
	encrypted bool
}

// source is the opened archive as the format handlers see it.
type source struct {
	ra   io.ReaderAt
	size int64
	// name is the host file name when the stream exposes one.
	name string
}

// inFormat reads one container format.
type inFormat interface {
	index(src source) ([]entry, error)
	// walk calls fn with the data of each wanted item. Formats that can only
	// be read sequentially visit items in archive order.
	walk(src source, entries []entry, wanted []uint32, fn func(index uint32, data io.Reader) error) error
}

// errItemData marks a failure reading an item's data, as opposed to a
// failure writing it out.
var errItemData = errors.New("item data error")

type reader struct {
	capability.Object

	format  inFormat
	stream  engine.InStream
	src     source
	entries []entry
}

var _ engine.InArchive = (*reader)(nil)

func newReader(format inFormat) *reader {
	r := &reader{format: format}
	r.Init(r, r.release, engine.IIDInArchive)
	return r
}

func (r *reader) release() {
	_ = r.Close()
}

type named interface {
	Name() string
}

func (r *reader) Open(stream engine.InStream, _ uint64, cb engine.ArchiveOpenCallback) error {
	_ = r.Close()

	size, err := engine.StreamSize(stream)
	if err != nil {
		return err
	}
	src := source{ra: engine.NewReaderAt(stream), size: size}
	if n, ok := stream.(named); ok {
		src.name = n.Name()
	}

	if cb != nil {
		if err := cb.OpenSetTotal(nil, uint64Ptr(uint64(size))); err != nil {
			return err
		}
	}

	entries, err := r.format.index(src)
	if err != nil {
		return fmt.Errorf("%w: %w", capability.ErrFail, err)
	}

	if cb != nil {
		files := uint64(len(entries))
		if err := cb.OpenSetCompleted(&files, uint64Ptr(uint64(size))); err != nil {
			return err
		}
	}

	stream.AddRef()
	r.stream = stream
	r.src = src
	r.entries = entries
	log().V(1).Info("opened archive", "items", len(entries), "bytes", size)
	return nil
}

func uint64Ptr(n uint64) *uint64 {
	return &n
}

func (r *reader) Close() error {
	if r.stream != nil {
		r.stream.Release()
		r.stream = nil
	}
	r.entries = nil
	r.src = source{}
	return nil
}

func (r *reader) NumberOfItems() (uint32, error) {
	return uint32(len(r.entries)), nil
}

func (r *reader) GetProperty(index uint32, prop engine.PropID) (variant.Variant, error) {
	if int(index) >= len(r.entries) {
		return variant.Empty(), capability.ErrInvalidArg
	}
	e := r.entries[index]

	switch prop {
	case engine.PropPath:
		return variant.Str(e.path), nil
	case engine.PropName:
		return variant.Str(path.Base(e.path)), nil
	case engine.PropExtension:
		if ext := path.Ext(e.path); ext != "" {
			return variant.Str(strings.TrimPrefix(ext, ".")), nil
		}
	case engine.PropIsDir:
		return variant.Bool(e.dir), nil
	case engine.PropSize:
		if e.sizeKnown {
			return variant.Uint64(e.size), nil
		}
	case engine.PropAttrib:
		if e.mode != 0 {
			return variant.Uint32(engine.AttributesFromMode(e.mode)), nil
		}
	case engine.PropMTime:
		if !e.mtime.IsZero() {
			return variant.Date(e.mtime), nil
		}
	case engine.PropEncrypted:
		return variant.Bool(e.encrypted), nil
	}
	return variant.Empty(), nil
}

func (r *reader) GetArchiveProperty(prop engine.PropID) (variant.Variant, error) {
	switch prop {
	case engine.PropPath:
		if r.src.name != "" {
			return variant.Str(r.src.name), nil
		}
	case engine.PropPhysicalSize:
		if r.stream != nil {
			return variant.Uint64(uint64(r.src.size)), nil
		}
	}
	return variant.Empty(), nil
}

func (r *reader) Extract(indices []uint32, testMode bool, cb engine.ArchiveExtractCallback) error {
	if r.stream == nil {
		return fmt.Errorf("%w: archive is not open", capability.ErrFail)
	}

	wanted := indices
	if wanted == nil {
		wanted = make([]uint32, len(r.entries))
		for i := range wanted {
			wanted[i] = uint32(i)
		}
	}

	var total uint64
	for _, i := range wanted {
		if int(i) >= len(r.entries) {
			return capability.ErrInvalidArg
		}
		total += r.entries[i].size
	}
	if err := cb.SetTotal(total); err != nil {
		return err
	}

	mode := engine.AskExtract
	if testMode {
		mode = engine.AskTest
	}

	var done uint64
	err := r.format.walk(r.src, r.entries, wanted, func(index uint32, data io.Reader) error {
		e := r.entries[index]
		if e.encrypted {
			if err := askPassword(cb); err != nil {
				return err
			}
		}

		out, err := cb.GetStream(index, mode)
		if err != nil {
			return err
		}
		if err := cb.PrepareOperation(mode); err != nil {
			if out != nil {
				out.Release()
			}
			return err
		}

		result := engine.ResultOK
		if e.encrypted {
			result = engine.ResultUnsupportedMethod
		} else if data != nil {
			result, err = copyItem(out, data)
		}
		if out != nil {
			out.Release()
		}
		if err != nil {
			return err
		}

		log().V(1).Info("extracted item", "index", index, "path", e.path, "result", result.String())
		if err := cb.SetOperationResult(result); err != nil {
			return err
		}
		done += e.size
		return cb.SetCompleted(done)
	})
	if err != nil {
		return fmt.Errorf("failed to extract: %w", err)
	}
	return nil
}

// copyItem copies data to out, or drains it when out is nil. Read failures
// become an item result; write failures abort.
func copyItem(out engine.SequentialOutStream, data io.Reader) (engine.OperationResult, error) {
	var dst io.Writer = io.Discard
	if out != nil {
		dst = engine.NewWriter(out)
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := data.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return engine.ResultOK, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return engine.ResultOK, nil
		}
		if rerr != nil {
			log().Info("failed to read item data", "error", rerr.Error())
			if isChecksumError(rerr) {
				return engine.ResultCRCError, nil
			}
			if errors.Is(rerr, io.ErrUnexpectedEOF) {
				return engine.ResultUnexpectedEnd, nil
			}
			return engine.ResultDataError, nil
		}
	}
}

func askPassword(cb capability.Unknown) error {
	crypto, err := capability.Query[engine.CryptoGetTextPassword](cb, engine.IIDCryptoGetTextPassword)
	if err != nil {
		return fmt.Errorf("%w: encrypted item and no password provider", capability.ErrAbort)
	}
	defer crypto.Release()

	if _, err := crypto.CryptoGetTextPassword(); err != nil {
		return err
	}
	return nil
}

// trimExt strips the first matching extension from the base of name.
func trimExt(name string, exts ...string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	lower := strings.ToLower(base)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) && len(base) > len(ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return ""
}
