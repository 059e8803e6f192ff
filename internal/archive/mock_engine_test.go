package archive

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/infracollect/archivekit/pkg/variant"
	"github.com/spf13/afero"
)

// events records the order in which host and engine calls happen.
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, fmt.Sprintf(format, args...))
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

func (e *events) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = nil
}

func (e *events) index(s string) int {
	for i, v := range e.all() {
		if v == s {
			return i
		}
	}
	return -1
}

// recordingFs records directory creation and file opens for writing.
type recordingFs struct {
	afero.Fs
	events *events
}

func (fs *recordingFs) MkdirAll(path string, perm os.FileMode) error {
	fs.events.add("mkdir %s", path)
	return fs.Fs.MkdirAll(path, perm)
}

func (fs *recordingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		fs.events.add("create %s", name)
	}
	return fs.Fs.OpenFile(name, flag, perm)
}

func (fs *recordingFs) Create(name string) (afero.File, error) {
	fs.events.add("create %s", name)
	return fs.Fs.Create(name)
}

func newRecordingFs() (*hostfs.FS, *events) {
	ev := &events{}
	return hostfs.New(&recordingFs{Fs: afero.NewMemMapFs(), events: ev}), ev
}

// mockItem is one scripted archive item. Properties missing from props are
// reported as empty.
type mockItem struct {
	props map[engine.PropID]variant.Variant
	data  []byte
}

func fileItem(path string, data []byte) mockItem {
	return mockItem{
		props: map[engine.PropID]variant.Variant{
			engine.PropPath: variant.Str(path),
			engine.PropSize: variant.Uint64(uint64(len(data))),
		},
		data: data,
	}
}

func dirItem(path string) mockItem {
	return mockItem{
		props: map[engine.PropID]variant.Variant{
			engine.PropPath:  variant.Str(path),
			engine.PropIsDir: variant.Bool(true),
		},
	}
}

type passwordStage int

const (
	passwordNever passwordStage = iota
	passwordOnOpen
	passwordOnExtract
)

// mockReader is a scripted InArchive.
type mockReader struct {
	capability.Object

	events       *events
	archiveProps map[engine.PropID]variant.Variant
	items        []mockItem
	// order overrides the extraction order; nil means index order.
	order      []uint32
	openErr    error
	extractErr error
	// password asks the callback for a password during Open or Extract.
	password passwordStage
	propErr  error

	stream engine.InStream
	closed int
}

func newMockReader(ev *events, items ...mockItem) *mockReader {
	r := &mockReader{events: ev, items: items}
	r.Init(r, nil, engine.IIDInArchive)
	return r
}

func (r *mockReader) Open(stream engine.InStream, _ uint64, cb engine.ArchiveOpenCallback) error {
	r.events.add("open")
	if r.openErr != nil {
		return r.openErr
	}
	if r.password == passwordOnOpen {
		if err := askPassword(cb); err != nil {
			return err
		}
	}
	files := uint64(len(r.items))
	if err := cb.OpenSetTotal(&files, nil); err != nil {
		return err
	}
	stream.AddRef()
	r.stream = stream
	return cb.OpenSetCompleted(&files, nil)
}

func askPassword(cb capability.Unknown) error {
	crypto, err := capability.Query[engine.CryptoGetTextPassword](cb, engine.IIDCryptoGetTextPassword)
	if err != nil {
		return err
	}
	defer crypto.Release()
	_, err = crypto.CryptoGetTextPassword()
	return err
}

func (r *mockReader) Close() error {
	r.events.add("close")
	r.closed++
	if r.stream != nil {
		r.stream.Release()
		r.stream = nil
	}
	return nil
}

func (r *mockReader) NumberOfItems() (uint32, error) {
	return uint32(len(r.items)), nil
}

func (r *mockReader) GetProperty(index uint32, prop engine.PropID) (variant.Variant, error) {
	if r.propErr != nil {
		return variant.Empty(), r.propErr
	}
	if int(index) >= len(r.items) {
		return variant.Empty(), capability.ErrInvalidArg
	}
	return r.items[index].props[prop].Clone(), nil
}

func (r *mockReader) GetArchiveProperty(prop engine.PropID) (variant.Variant, error) {
	return r.archiveProps[prop].Clone(), nil
}

func (r *mockReader) Extract(indices []uint32, testMode bool, cb engine.ArchiveExtractCallback) error {
	r.events.add("extract")
	if r.extractErr != nil {
		return r.extractErr
	}
	if r.password == passwordOnExtract {
		if err := askPassword(cb); err != nil {
			return err
		}
	}

	order := r.order
	if order == nil {
		for i := range r.items {
			order = append(order, uint32(i))
		}
	}

	var total uint64
	for _, item := range r.items {
		total += uint64(len(item.data))
	}
	if err := cb.SetTotal(total); err != nil {
		return err
	}

	var done uint64
	for _, index := range order {
		item := r.items[index]
		out, err := cb.GetStream(index, engine.AskExtract)
		if err != nil {
			return fmt.Errorf("failed to get stream for item %d: %w", index, err)
		}
		if err := cb.PrepareOperation(engine.AskExtract); err != nil {
			return err
		}
		if out != nil {
			r.events.add("write item %d", index)
			_, err := engine.WriteFull(out, item.data)
			out.Release()
			if err != nil {
				return err
			}
		}
		if err := cb.SetOperationResult(engine.ResultOK); err != nil {
			return err
		}
		done += uint64(len(item.data))
		if err := cb.SetCompleted(done); err != nil {
			return err
		}
	}
	return nil
}

// writtenItem is what mockWriter saw for one update item.
type writtenItem struct {
	info   engine.UpdateItemInfo
	path   string
	dir    bool
	size   uint64
	anti   bool
	mtime  variant.Variant
	extra  variant.Variant
	data   []byte
	stream bool
}

// mockWriter is a scripted OutArchive that records what the callback
// answers.
type mockWriter struct {
	capability.Object

	events    *events
	updateErr error
	// probeOutOfRange asks for a property one past the end of the list
	probeOutOfRange bool

	written       []writtenItem
	outOfRangeErr error
	password      *bool
}

func newMockWriter(ev *events) *mockWriter {
	w := &mockWriter{events: ev}
	w.Init(w, nil, engine.IIDOutArchive)
	return w
}

func (w *mockWriter) UpdateItems(out engine.SequentialOutStream, numItems uint32, cb engine.ArchiveUpdateCallback) error {
	w.events.add("update %d", numItems)
	if w.updateErr != nil {
		return w.updateErr
	}

	if crypto, err := capability.Query[engine.CryptoGetTextPassword2](cb, engine.IIDCryptoGetTextPassword2); err == nil {
		defined, _, err := crypto.CryptoGetTextPassword2()
		crypto.Release()
		if err != nil {
			return err
		}
		w.password = &defined
	}

	if w.probeOutOfRange {
		_, w.outOfRangeErr = cb.GetProperty(numItems, engine.PropPath)
	}

	var total uint64
	for i := range numItems {
		v, err := cb.GetProperty(i, engine.PropSize)
		if err != nil {
			return err
		}
		n, _ := v.AsUint64()
		total += n
	}
	if err := cb.SetTotal(total); err != nil {
		return err
	}

	var done uint64
	for i := range numItems {
		info, err := cb.GetUpdateItemInfo(i)
		if err != nil {
			return err
		}
		item := writtenItem{info: info}

		path, err := cb.GetProperty(i, engine.PropPath)
		if err != nil {
			return err
		}
		item.path, _ = path.AsString()
		path.Reset()

		dir, _ := cb.GetProperty(i, engine.PropIsDir)
		item.dir, _ = dir.AsBool()
		size, _ := cb.GetProperty(i, engine.PropSize)
		item.size, _ = size.AsUint64()
		anti, _ := cb.GetProperty(i, engine.PropIsAnti)
		item.anti, _ = anti.AsBool()
		item.mtime, _ = cb.GetProperty(i, engine.PropMTime)
		item.extra, _ = cb.GetProperty(i, engine.PropComment)

		in, err := cb.GetStream(i)
		if err != nil {
			return err
		}
		if in != nil {
			item.stream = true
			data, err := io.ReadAll(engine.NewReader(in))
			in.Release()
			if err != nil {
				return err
			}
			item.data = data
			if _, err := engine.WriteFull(out, data); err != nil {
				return err
			}
		}
		w.written = append(w.written, item)

		if err := cb.SetOperationResult(engine.ResultOK); err != nil {
			return err
		}
		done += item.size
		if err := cb.SetCompleted(done); err != nil {
			return err
		}
	}
	return nil
}

// mockFactory hands out the scripted reader and writer.
type mockFactory struct {
	events    *events
	reader    *mockReader
	writer    *mockWriter
	readerErr error
	writerErr error
}

func (f *mockFactory) NewReader(format formats.Format) (engine.InArchive, error) {
	f.events.add("new reader %s", format)
	if f.readerErr != nil {
		return nil, f.readerErr
	}
	f.reader.AddRef()
	return f.reader, nil
}

func (f *mockFactory) NewWriter(format formats.Format) (engine.OutArchive, error) {
	f.events.add("new writer %s", format)
	if f.writerErr != nil {
		return nil, f.writerErr
	}
	f.writer.AddRef()
	return f.writer, nil
}
