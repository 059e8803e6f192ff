package refengine

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/infracollect/archivekit/internal/streams"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOut collects what the engine writes for one item.
type memOut struct {
	capability.Object
	buf bytes.Buffer
}

func newMemOut() *memOut {
	o := &memOut{}
	o.Init(o, nil, engine.IIDSequentialOutStream)
	return o
}

func (o *memOut) Write(p []byte) (int, error) {
	// accept at most 7 bytes per call to exercise partial writes
	if len(p) > 7 {
		p = p[:7]
	}
	return o.buf.Write(p)
}

// extractSink is a minimal extract callback keeping item data in memory.
type extractSink struct {
	capability.Object
	refusePassword bool

	total     uint64
	completed uint64
	outs      map[uint32]*memOut
	results   []engine.OperationResult
	asked     bool
}

func newExtractSink() *extractSink {
	s := &extractSink{outs: make(map[uint32]*memOut)}
	s.Init(s, nil, engine.IIDArchiveExtractCallback, engine.IIDCryptoGetTextPassword)
	return s
}

func (s *extractSink) SetTotal(total uint64) error         { s.total = total; return nil }
func (s *extractSink) SetCompleted(completed uint64) error { s.completed = completed; return nil }
func (s *extractSink) PrepareOperation(engine.AskMode) error {
	return nil
}

func (s *extractSink) GetStream(index uint32, mode engine.AskMode) (engine.SequentialOutStream, error) {
	if mode != engine.AskExtract {
		return nil, nil
	}
	o := newMemOut()
	o.AddRef()
	s.outs[index] = o
	return o, nil
}

func (s *extractSink) SetOperationResult(result engine.OperationResult) error {
	s.results = append(s.results, result)
	return nil
}

func (s *extractSink) CryptoGetTextPassword() (string, error) {
	s.asked = true
	return "", capability.ErrAbort
}

func openReader(t *testing.T, format formats.Format, name string, data []byte) engine.InArchive {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	f, err := fs.Open(name)
	require.NoError(t, err)

	stream := streams.NewReadStream(f)
	stream.AddRef()
	defer stream.Release()

	obj, err := CreateObject(formats.Lookup(format).ReaderClass, engine.IIDInArchive)
	require.NoError(t, err)
	r := obj.(engine.InArchive)
	t.Cleanup(func() { r.Release() })

	require.NoError(t, r.Open(stream, 0, nil))
	return r
}

func buildZip(t *testing.T, encrypted bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	_, err := zw.CreateHeader(&zip.FileHeader{Name: "dir/"})
	require.NoError(t, err)

	hdr := &zip.FileHeader{Name: "dir/hello.txt", Method: zip.Deflate, Modified: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)}
	if encrypted {
		hdr.Flags |= zipFlagEncrypted
	}
	w, err := zw.CreateHeader(hdr)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello, archive"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCreateObject(t *testing.T) {
	tests := []struct {
		name    string
		class   capability.GUID
		iid     capability.GUID
		wantErr error
	}{
		{name: "zip reader", class: formats.Lookup(formats.Zip).ReaderClass, iid: engine.IIDInArchive},
		{name: "tar writer", class: formats.Lookup(formats.Tar).WriterClass, iid: engine.IIDOutArchive},
		{name: "bzip2 writer", class: formats.Lookup(formats.BZip2).WriterClass, iid: engine.IIDOutArchive, wantErr: capability.ErrClassNotAvailable},
		{name: "7z reader", class: formats.Lookup(formats.SevenZip).ReaderClass, iid: engine.IIDInArchive, wantErr: capability.ErrClassNotAvailable},
		{name: "stream interface", class: formats.Lookup(formats.Zip).ReaderClass, iid: engine.IIDInStream, wantErr: capability.ErrNoInterface},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := CreateObject(tt.class, tt.iid)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, obj)
				return
			}
			require.NoError(t, err)
			assert.True(t, capability.Supports(obj, tt.iid))
			assert.Equal(t, uint32(0), obj.Release())
		})
	}
}

func TestFormats(t *testing.T) {
	readable, writable := Formats()
	assert.ElementsMatch(t, []formats.Format{formats.Zip, formats.GZip, formats.BZip2, formats.Tar}, readable)
	assert.ElementsMatch(t, []formats.Format{formats.Zip, formats.GZip, formats.Tar}, writable)
}

func TestZipReader_PropertiesAndExtract(t *testing.T) {
	r := openReader(t, formats.Zip, "/test.zip", buildZip(t, false))

	count, err := r.NumberOfItems()
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	p, err := r.GetProperty(0, engine.PropPath)
	require.NoError(t, err)
	name, _ := p.AsString()
	assert.Equal(t, "dir", name)

	p, err = r.GetProperty(0, engine.PropIsDir)
	require.NoError(t, err)
	dir, _ := p.AsBool()
	assert.True(t, dir)

	p, err = r.GetProperty(1, engine.PropSize)
	require.NoError(t, err)
	size, _ := p.AsUint64()
	assert.Equal(t, uint64(14), size)

	p, err = r.GetProperty(1, engine.PropMTime)
	require.NoError(t, err)
	mtime, ok := p.AsTime()
	require.True(t, ok)
	assert.Equal(t, 2024, mtime.Year())

	p, err = r.GetProperty(1, engine.PropComment)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())

	_, err = r.GetProperty(5, engine.PropPath)
	assert.ErrorIs(t, err, capability.ErrInvalidArg)

	p, err = r.GetArchiveProperty(engine.PropPath)
	require.NoError(t, err)
	archivePath, _ := p.AsString()
	assert.Equal(t, "/test.zip", archivePath)

	sink := newExtractSink()
	sink.AddRef()
	defer sink.Release()

	require.NoError(t, r.Extract(nil, false, sink))
	assert.Equal(t, uint64(14), sink.total)
	assert.Equal(t, uint64(14), sink.completed)
	assert.Equal(t, []engine.OperationResult{engine.ResultOK, engine.ResultOK}, sink.results)
	assert.Equal(t, "hello, archive", sink.outs[1].buf.String())
	assert.Equal(t, 0, sink.outs[0].buf.Len())
	for _, o := range sink.outs {
		assert.True(t, o.Destroyed(), "engine must release output streams")
	}
}

func TestZipReader_EncryptedEntryAbortsWithoutPassword(t *testing.T) {
	r := openReader(t, formats.Zip, "/secret.zip", buildZip(t, true))

	p, err := r.GetProperty(1, engine.PropEncrypted)
	require.NoError(t, err)
	encrypted, _ := p.AsBool()
	assert.True(t, encrypted)

	sink := newExtractSink()
	sink.AddRef()
	defer sink.Release()

	err = r.Extract(nil, false, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, capability.ErrAbort)
	assert.True(t, sink.asked)
	assert.NotContains(t, sink.outs, uint32(1))
}

func TestZipReader_RejectsGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.zip", []byte("not a zip at all"), 0o644))
	f, err := fs.Open("/bad.zip")
	require.NoError(t, err)
	stream := streams.NewReadStream(f)
	stream.AddRef()
	defer stream.Release()

	r := newReader(newZipIn())
	r.AddRef()
	defer r.Release()

	err = r.Open(stream, 0, nil)
	assert.ErrorIs(t, err, capability.ErrFail)
	assert.Equal(t, int32(1), stream.RefCount(), "a failed open must not keep the stream")
}

func TestTarReader(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./logs/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./logs/app.log", Typeflag: tar.TypeReg, Mode: 0o640, Size: 5}))
	_, err := tw.Write([]byte("12345"))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "logs"}))
	require.NoError(t, tw.Close())

	r := openReader(t, formats.Tar, "/a.tar", buf.Bytes())

	count, err := r.NumberOfItems()
	require.NoError(t, err)
	require.Equal(t, uint32(2), count, "symlinks are not indexed")

	p, err := r.GetProperty(1, engine.PropPath)
	require.NoError(t, err)
	name, _ := p.AsString()
	assert.Equal(t, "logs/app.log", name)

	p, err = r.GetProperty(1, engine.PropAttrib)
	require.NoError(t, err)
	attrib, _ := p.AsUint32()
	perm, ok := engine.PermFromAttributes(attrib)
	require.True(t, ok)
	assert.Equal(t, "-rw-r-----", perm.String())

	sink := newExtractSink()
	sink.AddRef()
	defer sink.Release()

	require.NoError(t, r.Extract([]uint32{1}, false, sink))
	assert.Equal(t, "12345", sink.outs[1].buf.String())
	assert.NotContains(t, sink.outs, uint32(0))
}

func TestGzipReader(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(bytes.Repeat([]byte("z"), 300))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	r := openReader(t, formats.GZip, "/dump.sql.gz", buf.Bytes())

	p, err := r.GetProperty(0, engine.PropPath)
	require.NoError(t, err)
	name, _ := p.AsString()
	assert.Equal(t, "dump.sql", name, "unnamed gzip takes the host file name")

	p, err = r.GetProperty(0, engine.PropSize)
	require.NoError(t, err)
	size, _ := p.AsUint64()
	assert.Equal(t, uint64(300), size)

	sink := newExtractSink()
	sink.AddRef()
	defer sink.Release()

	require.NoError(t, r.Extract(nil, false, sink))
	assert.Equal(t, 300, sink.outs[0].buf.Len())
}

func TestBzip2Reader_RejectsNonBzip2(t *testing.T) {
	_, err := bzip2In{}.index(source{ra: bytes.NewReader([]byte("plain")), size: 5})
	assert.Error(t, err)

	entries, err := bzip2In{}.index(source{ra: bytes.NewReader([]byte("BZh91AY")), size: 7, name: "/tmp/notes.txt.bz2"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].path)
	assert.False(t, entries[0].sizeKnown)
}

func TestSingleItemName(t *testing.T) {
	assert.Equal(t, "a.txt", singleItemName("/x/a.txt.gz", ".gz"))
	assert.Equal(t, "backup.tar", singleItemName("/x/backup.tgz", ".gz"))
	assert.Equal(t, "data", singleItemName("", ".gz"))
	assert.Equal(t, "data", singleItemName("/x/.gz", ".gz"))
}
