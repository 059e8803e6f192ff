package refengine

import (
	"fmt"
	"io"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/variant"
)

// updateItem is what the update callback reported for one item.
type updateItem struct {
	index  uint32
	path   string
	dir    bool
	size   uint64
	mtime  time.Time
	attrib uint32
}

func (i updateItem) fileMode() fs.FileMode {
	perm := fs.FileMode(0o644)
	if i.dir {
		perm = 0o755
	}
	if p, ok := engine.PermFromAttributes(i.attrib); ok && p != 0 {
		perm = p
	}
	if i.dir {
		return fs.ModeDir | perm
	}
	return perm
}

// outFormat writes one container format.
type outFormat interface {
	begin(out io.Writer, items []updateItem) error
	// add writes one item. data is nil for directories and for items the
	// host supplied no stream for.
	add(item updateItem, data io.Reader) error
	finish() error
}

type writer struct {
	capability.Object
	format outFormat
}

var _ engine.OutArchive = (*writer)(nil)

func newWriter(format outFormat) *writer {
	w := &writer{format: format}
	w.Init(w, nil, engine.IIDOutArchive)
	return w
}

func (w *writer) UpdateItems(out engine.SequentialOutStream, numItems uint32, cb engine.ArchiveUpdateCallback) error {
	if err := checkPassword(cb); err != nil {
		return err
	}

	items, err := readUpdateItems(cb, numItems)
	if err != nil {
		return err
	}

	var total uint64
	for _, item := range items {
		total += item.size
	}
	if err := cb.SetTotal(total); err != nil {
		return err
	}

	var ratio engine.CompressProgressInfo
	if r, err := capability.Query[engine.CompressProgressInfo](cb, engine.IIDCompressProgressInfo); err == nil {
		ratio = r
		defer ratio.Release()
	}

	var inBytes atomic.Uint64
	dst := &countingWriter{w: engine.NewWriter(out)}
	if err := w.format.begin(dst, items); err != nil {
		return err
	}

	var done uint64
	for _, item := range items {
		if err := w.addItem(cb, item, &inBytes); err != nil {
			return err
		}
		if err := cb.SetOperationResult(engine.ResultOK); err != nil {
			return err
		}
		done += item.size
		if err := cb.SetCompleted(done); err != nil {
			return err
		}
		if ratio != nil {
			in, written := inBytes.Load(), dst.n
			if err := ratio.SetRatioInfo(&in, &written); err != nil {
				return err
			}
		}
	}

	if err := w.format.finish(); err != nil {
		return err
	}
	log().V(1).Info("wrote archive", "items", len(items), "bytes", dst.n)
	return nil
}

func (w *writer) addItem(cb engine.ArchiveUpdateCallback, item updateItem, inBytes *atomic.Uint64) error {
	if item.dir {
		return w.format.add(item, nil)
	}

	stream, err := cb.GetStream(item.index)
	if err != nil {
		return fmt.Errorf("failed to get stream for %s: %w", item.path, err)
	}
	if stream == nil {
		return w.format.add(item, nil)
	}
	defer stream.Release()

	return w.format.add(item, &countingReader{r: engine.NewReader(stream), n: inBytes})
}

// checkPassword refuses to encrypt: the host must not define a password.
func checkPassword(cb capability.Unknown) error {
	crypto, err := capability.Query[engine.CryptoGetTextPassword2](cb, engine.IIDCryptoGetTextPassword2)
	if err != nil {
		return nil
	}
	defer crypto.Release()

	defined, _, err := crypto.CryptoGetTextPassword2()
	if err != nil {
		return err
	}
	if defined {
		return fmt.Errorf("%w: encryption", capability.ErrNotImplemented)
	}
	return nil
}

func readUpdateItems(cb engine.ArchiveUpdateCallback, numItems uint32) ([]updateItem, error) {
	items := make([]updateItem, 0, numItems)
	for i := range numItems {
		info, err := cb.GetUpdateItemInfo(i)
		if err != nil {
			return nil, err
		}
		if !info.NewData || !info.NewProperties {
			return nil, fmt.Errorf("%w: item %d reuses archive data", capability.ErrNotImplemented, i)
		}

		p := props{cb: cb, index: i}
		if p.flag(engine.PropIsAnti) {
			log().V(1).Info("skipping anti item", "index", i)
			continue
		}

		item := updateItem{
			index:  i,
			path:   p.str(engine.PropPath),
			dir:    p.flag(engine.PropIsDir),
			size:   p.u64(engine.PropSize),
			mtime:  p.date(engine.PropMTime),
			attrib: p.u32(engine.PropAttrib),
		}
		if p.err != nil {
			return nil, p.err
		}
		if item.path == "" {
			return nil, fmt.Errorf("%w: item %d has no path", capability.ErrInvalidArg, i)
		}
		if item.dir {
			item.size = 0
		}
		items = append(items, item)
	}
	return items, nil
}

// props reads one item's properties, keeping the first error.
type props struct {
	cb    engine.ArchiveUpdateCallback
	index uint32
	err   error
}

func (p *props) get(id engine.PropID) variant.Variant {
	if p.err != nil {
		return variant.Empty()
	}
	v, err := p.cb.GetProperty(p.index, id)
	if err != nil {
		p.err = fmt.Errorf("failed to get %s of item %d: %w", id, p.index, err)
		return variant.Empty()
	}
	return v
}

func (p *props) str(id engine.PropID) string {
	v := p.get(id)
	defer v.Reset()
	s, _ := v.AsString()
	return s
}

func (p *props) flag(id engine.PropID) bool {
	v := p.get(id)
	b, _ := v.AsBool()
	return b
}

func (p *props) u64(id engine.PropID) uint64 {
	v := p.get(id)
	n, _ := v.AsUint64()
	return n
}

func (p *props) u32(id engine.PropID) uint32 {
	v := p.get(id)
	n, _ := v.AsUint32()
	return n
}

func (p *props) date(id engine.PropID) time.Time {
	v := p.get(id)
	t, _ := v.AsTime()
	return t
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n *atomic.Uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(uint64(n))
	return n, err
}
