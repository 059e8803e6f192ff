// Package hostfs is the host side of every file the engine reads or writes.
package hostfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// FS wraps an afero.Fs with the path helpers the archive operations need.
type FS struct {
	fs afero.Fs
}

func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// OS returns an FS backed by the real filesystem.
func OS() *FS {
	return New(afero.NewOsFs())
}

func (f *FS) Fs() afero.Fs {
	return f.fs
}

func (f *FS) OpenForRead(path string) (afero.File, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for reading: %w", path, err)
	}
	return file, nil
}

// OpenForWrite creates or truncates path.
func (f *FS) OpenForWrite(path string) (afero.File, error) {
	file, err := f.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	return file, nil
}

func (f *FS) Stat(path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

func (f *FS) Exists(path string) bool {
	ok, err := afero.Exists(f.fs, path)
	return ok && err == nil
}

// EnsureDirectoryTree creates path and any missing parents.
func (f *FS) EnsureDirectoryTree(path string) error {
	if err := f.fs.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func (f *FS) Chtimes(path string, atime, mtime time.Time) error {
	if err := f.fs.Chtimes(path, atime, mtime); err != nil {
		return fmt.Errorf("failed to set times on %s: %w", path, err)
	}
	return nil
}

func (f *FS) Chmod(path string, mode os.FileMode) error {
	if err := f.fs.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	return nil
}

// Join appends the archive-relative component to base. It returns "" when
// component is absolute or would leave base. An empty component yields base.
func Join(base, component string) string {
	component = strings.ReplaceAll(component, "\\", "/")
	if component == "" {
		return base
	}
	if strings.HasPrefix(component, "/") || filepath.IsAbs(component) {
		return ""
	}
	local := filepath.FromSlash(component)
	if !filepath.IsLocal(local) {
		return ""
	}
	return filepath.Join(base, local)
}

// Parent returns the directory containing path.
func Parent(path string) string {
	return filepath.Dir(path)
}
