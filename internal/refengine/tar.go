package refengine

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"
)

type tarIn struct{}

func newTarIn() inFormat { return tarIn{} }

// tarName returns the item path for hdr, or "" when the entry is not a
// regular file or directory.
func tarName(hdr *tar.Header) string {
	if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != tar.TypeDir {
		return ""
	}
	name := strings.TrimPrefix(hdr.Name, "./")
	return strings.TrimSuffix(name, "/")
}

func scanTar(src source, fn func(index uint32, hdr *tar.Header, tr *tar.Reader) error) error {
	tr := tar.NewReader(io.NewSectionReader(src.ra, 0, src.size))
	var index uint32
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}
		if tarName(hdr) == "" {
			continue
		}
		if err := fn(index, hdr, tr); err != nil {
			return err
		}
		index++
	}
}

func (tarIn) index(src source) ([]entry, error) {
	var entries []entry
	err := scanTar(src, func(_ uint32, hdr *tar.Header, _ *tar.Reader) error {
		dir := hdr.Typeflag == tar.TypeDir
		e := entry{
			path:      tarName(hdr),
			dir:       dir,
			sizeKnown: true,
			mtime:     hdr.ModTime,
			mode:      hdr.FileInfo().Mode(),
		}
		if !dir {
			e.size = uint64(hdr.Size)
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// walk visits the wanted items in archive order.
func (tarIn) walk(src source, entries []entry, wanted []uint32, fn func(uint32, io.Reader) error) error {
	want := make(map[uint32]bool, len(wanted))
	for _, i := range wanted {
		want[i] = true
	}

	return scanTar(src, func(index uint32, hdr *tar.Header, tr *tar.Reader) error {
		if !want[index] {
			return nil
		}
		if entries[index].dir {
			return fn(index, nil)
		}
		return fn(index, tr)
	})
}

type tarOut struct {
	tw *tar.Writer
}

func newTarOut() outFormat { return &tarOut{} }

func (t *tarOut) begin(out io.Writer, _ []updateItem) error {
	t.tw = tar.NewWriter(out)
	return nil
}

func (t *tarOut) add(item updateItem, data io.Reader) error {
	mode := item.fileMode()
	hdr := &tar.Header{
		Name:    item.path,
		Mode:    int64(mode.Perm()),
		ModTime: item.mtime,
	}
	if item.dir {
		hdr.Typeflag = tar.TypeDir
		hdr.Name = strings.TrimSuffix(item.path, "/") + "/"
	} else {
		hdr.Typeflag = tar.TypeReg
		hdr.Size = int64(item.size)
	}

	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to add %s: %w", item.path, err)
	}
	if item.dir || data == nil {
		return nil
	}
	if _, err := io.Copy(t.tw, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", item.path, err)
	}
	return nil
}

func (t *tarOut) finish() error {
	if err := t.tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar: %w", err)
	}
	return nil
}
