package refengine

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
)

var bzip2Magic = []byte("BZh")

type bzip2In struct{}

func newBzip2In() inFormat { return bzip2In{} }

// index reports a single item. bzip2 does not record the uncompressed size,
// so the size property is left empty.
func (bzip2In) index(src source) ([]entry, error) {
	magic := make([]byte, len(bzip2Magic))
	if _, err := src.ra.ReadAt(magic, 0); err != nil || !bytes.Equal(magic, bzip2Magic) {
		return nil, fmt.Errorf("not a bzip2 stream")
	}
	return []entry{{path: singleItemName(src.name, ".bz2", ".bz")}}, nil
}

func (bzip2In) walk(src source, _ []entry, wanted []uint32, fn func(uint32, io.Reader) error) error {
	if len(wanted) == 0 {
		return nil
	}
	return fn(0, bzip2.NewReader(io.NewSectionReader(src.ra, 0, src.size)))
}
