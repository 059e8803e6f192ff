package hostfs

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"time"

	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/spf13/afero"
)

// FileEntry describes one host file or directory to add to an archive.
type FileEntry struct {
	// Path is the host path the content is read from.
	Path string
	// Name is the slash-separated path recorded in the archive. When empty
	// the base name of Path is used.
	Name       string
	Size       uint64
	Dir        bool
	Attributes uint32
	CTime      time.Time
	ATime      time.Time
	MTime      time.Time
}

// ArchiveName returns the path recorded in the archive for e.
func (e FileEntry) ArchiveName() string {
	if e.Name != "" {
		return e.Name
	}
	return filepath.Base(e.Path)
}

func entryFromInfo(hostPath, name string, info fs.FileInfo) FileEntry {
	e := FileEntry{
		Path:       hostPath,
		Name:       name,
		Dir:        info.IsDir(),
		Attributes: engine.AttributesFromMode(info.Mode()),
		MTime:      info.ModTime(),
	}
	// afero exposes only the modification time portably.
	e.CTime = e.MTime
	e.ATime = e.MTime
	if !e.Dir {
		e.Size = uint64(info.Size())
	}
	return e
}

// Collect enumerates roots into entries. A file root becomes one entry named
// after its base name; a directory root contributes itself and everything
// below it, named relative to the root's parent. Entries come in walk order,
// so a directory always precedes its contents.
func (f *FS) Collect(roots ...string) ([]FileEntry, error) {
	var entries []FileEntry
	for _, root := range roots {
		root = filepath.Clean(root)
		info, err := f.fs.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}

		base := filepath.Base(root)
		if !info.IsDir() {
			entries = append(entries, entryFromInfo(root, base, info))
			continue
		}

		err = afero.Walk(f.fs, root, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			name := path.Join(base, filepath.ToSlash(rel))
			entries = append(entries, entryFromInfo(p, name, info))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return entries, nil
}
