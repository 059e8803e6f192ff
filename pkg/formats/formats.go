// Package formats maps archive formats to the engine classes that handle them.
package formats

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/samber/lo"
)

// Format selects an archive format.
type Format int

const (
	SevenZip Format = iota
	Zip
	GZip
	BZip2
	Rar
	Tar
	Iso
	Cab
	Lzma
	Lzma86
	// Last is the terminal sentinel; it is not a format.
	Last
)

// Descriptor is the immutable registry record for a format.
type Descriptor struct {
	Format      Format
	Name        string
	ReaderClass capability.GUID
	WriterClass capability.GUID
	Extension   string
}

func handlerClass(id string) capability.GUID {
	return capability.MustGUID("23170F69-40C1-278A-1000-000110" + id + "0000")
}

var table = [Last]Descriptor{
	{Format: SevenZip, Name: "7z", Extension: ".7z", ReaderClass: handlerClass("07"), WriterClass: handlerClass("07")},
	{Format: Zip, Name: "zip", Extension: ".zip", ReaderClass: handlerClass("01"), WriterClass: handlerClass("01")},
	{Format: GZip, Name: "gzip", Extension: ".gz", ReaderClass: handlerClass("EF"), WriterClass: handlerClass("EF")},
	{Format: BZip2, Name: "bzip2", Extension: ".bz2", ReaderClass: handlerClass("02"), WriterClass: handlerClass("02")},
	{Format: Rar, Name: "rar", Extension: ".rar", ReaderClass: handlerClass("03"), WriterClass: handlerClass("03")},
	{Format: Tar, Name: "tar", Extension: ".tar", ReaderClass: handlerClass("EE"), WriterClass: handlerClass("EE")},
	{Format: Iso, Name: "iso", Extension: ".iso", ReaderClass: handlerClass("E7"), WriterClass: handlerClass("E7")},
	{Format: Cab, Name: "cab", Extension: ".cab", ReaderClass: handlerClass("08"), WriterClass: handlerClass("08")},
	{Format: Lzma, Name: "lzma", Extension: ".lzma", ReaderClass: handlerClass("0A"), WriterClass: handlerClass("0A")},
	{Format: Lzma86, Name: "lzma86", Extension: ".lzma86", ReaderClass: handlerClass("0B"), WriterClass: handlerClass("0B")},
}

// extra extensions accepted by FromPath besides the canonical ones
var aliases = map[string]Format{
	".bz":   BZip2,
	".tbz2": BZip2,
	".tgz":  GZip,
	".7zip": SevenZip,
}

// Lookup returns the descriptor for f. Out-of-range selectors clamp to the
// last entry of the table.
func Lookup(f Format) Descriptor {
	if f < 0 || f >= Last {
		return table[Last-1]
	}
	return table[f]
}

// All returns every descriptor in selector order.
func All() []Descriptor {
	return table[:]
}

// Valid reports whether f names a format rather than the sentinel or an
// out-of-range value.
func (f Format) Valid() bool {
	return f >= 0 && f < Last
}

func (f Format) String() string {
	if !f.Valid() {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return table[f].Name
}

// Names returns the registered format names.
func Names() []string {
	return lo.Map(table[:], func(d Descriptor, _ int) string { return d.Name })
}

// Parse resolves a format name, case-insensitively. Unknown names fail.
func Parse(name string) (Format, error) {
	d, ok := lo.Find(table[:], func(d Descriptor) bool {
		return strings.EqualFold(d.Name, name)
	})
	if !ok {
		return Last, fmt.Errorf("unknown format %q, expected one of %s", name, strings.Join(Names(), ", "))
	}
	return d.Format, nil
}

// FromPath detects the format from the extension of path.
func FromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return Last, fmt.Errorf("cannot detect format of %q: no extension", path)
	}
	if d, ok := lo.Find(table[:], func(d Descriptor) bool { return d.Extension == ext }); ok {
		return d.Format, nil
	}
	if f, ok := aliases[ext]; ok {
		return f, nil
	}
	return Last, fmt.Errorf("cannot detect format of %q: unknown extension %q", path, ext)
}
