package refengine

import (
	"encoding/binary"
	"fmt"
	"io"
	"path"

	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/klauspost/compress/gzip"
)

// gzip trailer: CRC32 then ISIZE, both little endian
const gzipTrailerSize = 8

type gzipIn struct{}

func newGzipIn() inFormat { return gzipIn{} }

// singleItemName names the only item of a single-stream format when the
// container does not.
func singleItemName(hostName string, exts ...string) string {
	if hostName == "" {
		return "data"
	}
	if base := path.Base(hostName); len(base) > 4 && (path.Ext(base) == ".tgz" || path.Ext(base) == ".tbz2") {
		return base[:len(base)-len(path.Ext(base))] + ".tar"
	}
	if name := trimExt(hostName, exts...); name != "" {
		return name
	}
	return "data"
}

func (gzipIn) index(src source) ([]entry, error) {
	zr, err := gzip.NewReader(io.NewSectionReader(src.ra, 0, src.size))
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip header: %w", err)
	}
	defer zr.Close()

	e := entry{
		path:  zr.Name,
		mtime: zr.ModTime,
	}
	if e.path == "" {
		e.path = singleItemName(src.name, ".gz", ".gzip")
	} else {
		e.path = path.Base(e.path)
	}

	if src.size >= gzipTrailerSize {
		var trailer [gzipTrailerSize]byte
		if _, err := src.ra.ReadAt(trailer[:], src.size-gzipTrailerSize); err == nil {
			e.size = uint64(binary.LittleEndian.Uint32(trailer[4:]))
			e.sizeKnown = true
		}
	}
	return []entry{e}, nil
}

func (gzipIn) walk(src source, _ []entry, wanted []uint32, fn func(uint32, io.Reader) error) error {
	if len(wanted) == 0 {
		return nil
	}
	zr, err := gzip.NewReader(io.NewSectionReader(src.ra, 0, src.size))
	if err != nil {
		return fmt.Errorf("failed to read gzip header: %w", err)
	}
	defer zr.Close()
	return fn(0, zr)
}

type gzipOut struct {
	out io.Writer
	zw  *gzip.Writer
}

func newGzipOut() outFormat { return &gzipOut{} }

func (g *gzipOut) begin(out io.Writer, items []updateItem) error {
	files := 0
	for _, item := range items {
		if !item.dir {
			files++
		}
	}
	if files != 1 {
		return fmt.Errorf("%w: gzip holds exactly one file, got %d", capability.ErrInvalidArg, files)
	}
	g.out = out
	return nil
}

func (g *gzipOut) add(item updateItem, data io.Reader) error {
	if item.dir {
		return nil
	}

	zw, err := gzip.NewWriterLevel(g.out, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	zw.Name = path.Base(item.path)
	zw.ModTime = item.mtime
	g.zw = zw

	if data == nil {
		return nil
	}
	if _, err := io.Copy(zw, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", item.path, err)
	}
	return nil
}

func (g *gzipOut) finish() error {
	if g.zw == nil {
		return nil
	}
	if err := g.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip: %w", err)
	}
	return nil
}
