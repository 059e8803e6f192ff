package refengine

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

const zipFlagEncrypted = 0x1

type zipIn struct {
	files []*zip.File
}

func newZipIn() inFormat { return &zipIn{} }

func (z *zipIn) index(src source) ([]entry, error) {
	zr, err := zip.NewReader(src.ra, src.size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip directory: %w", err)
	}

	z.files = zr.File
	entries := make([]entry, 0, len(zr.File))
	for _, f := range zr.File {
		mode := f.Mode()
		dir := mode.IsDir() || strings.HasSuffix(f.Name, "/")
		e := entry{
			path:      strings.TrimSuffix(f.Name, "/"),
			dir:       dir,
			sizeKnown: true,
			mtime:     f.Modified,
			mode:      mode,
			encrypted: f.Flags&zipFlagEncrypted != 0,
		}
		if !dir {
			e.size = f.UncompressedSize64
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (z *zipIn) walk(_ source, entries []entry, wanted []uint32, fn func(uint32, io.Reader) error) error {
	for _, index := range wanted {
		e := entries[index]
		if e.dir || e.encrypted {
			if err := fn(index, nil); err != nil {
				return err
			}
			continue
		}

		rc, err := z.files[index].Open()
		if err != nil {
			// reported as a data error for this item
			if err := fn(index, errReader{err: err}); err != nil {
				return err
			}
			continue
		}
		err = fn(index, rc)
		closeErr := rc.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			log().Info("failed to close zip entry", "path", e.path, "error", closeErr.Error())
		}
	}
	return nil
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

func isChecksumError(err error) bool {
	return errors.Is(err, zip.ErrChecksum) || errors.Is(err, gzip.ErrChecksum)
}

type zipOut struct {
	zw *zip.Writer
}

func newZipOut() outFormat { return &zipOut{} }

func (z *zipOut) begin(out io.Writer, _ []updateItem) error {
	z.zw = zip.NewWriter(out)
	return nil
}

func (z *zipOut) add(item updateItem, data io.Reader) error {
	hdr := &zip.FileHeader{
		Name:     item.path,
		Method:   zip.Deflate,
		Modified: item.mtime,
	}
	if item.dir {
		hdr.Name = strings.TrimSuffix(item.path, "/") + "/"
		hdr.Method = zip.Store
	}
	hdr.SetMode(item.fileMode())

	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", item.path, err)
	}
	if item.dir || data == nil {
		return nil
	}
	if _, err := io.Copy(w, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", item.path, err)
	}
	return nil
}

func (z *zipOut) finish() error {
	if err := z.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip: %w", err)
	}
	return nil
}
