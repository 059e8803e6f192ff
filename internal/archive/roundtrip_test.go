package archive

import (
	"path/filepath"
	"testing"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/refengine"
	"github.com/infracollect/archivekit/internal/session"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openBuiltin(t *testing.T) *session.Session {
	t.Helper()
	loader := session.NewStaticLoader()
	loader.Register(refengine.ModuleName, refengine.Symbols())

	s, err := session.Open(loader, refengine.ModuleName, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	files := map[string]string{
		"project/README.md":        "# readme\n",
		"project/src/main.go":      "package main\n\nfunc main() {}\n",
		"project/src/empty.txt":    "",
		"project/assets/logo.bin":  string(make([]byte, 4096)),
		"project/assets/deep/x.md": "deep",
	}

	for _, format := range []formats.Format{formats.Zip, formats.Tar} {
		t.Run(format.String(), func(t *testing.T) {
			mem := afero.NewMemMapFs()
			fs := hostfs.New(mem)
			for name, content := range files {
				require.NoError(t, afero.WriteFile(mem, filepath.Join("/src", name), []byte(content), 0o644))
			}
			require.NoError(t, fs.EnsureDirectoryTree("/src/project/empty-dir"))

			entries, err := fs.Collect("/src/project")
			require.NoError(t, err)

			a := New(openBuiltin(t), fs, zaptest.NewLogger(t))
			dest := "/archives/out" + formats.Lookup(format).Extension
			require.NoError(t, fs.EnsureDirectoryTree("/archives"))

			compressProgress := &recordingProgress{}
			require.NoError(t, a.Compress(t.Context(), dest, format, entries, compressProgress))
			require.NotEmpty(t, compressProgress.calls)
			assert.Equal(t, progressCall{"start", dest, 4096 + 9 + 29 + 4}, compressProgress.calls[0])

			var listed []string
			require.NoError(t, a.Open(t.Context(), dest, format, func(name string, size int64) {
				if size >= 0 {
					listed = append(listed, name)
				}
			}))
			assert.Len(t, listed, len(entries))

			extractProgress := &recordingProgress{}
			require.NoError(t, a.Extract(t.Context(), dest, format, "/restore", extractProgress))

			for name, content := range files {
				data, err := afero.ReadFile(mem, filepath.Join("/restore", name))
				require.NoError(t, err, name)
				assert.Equal(t, content, string(data), name)
			}

			info, err := fs.Stat("/restore/project/empty-dir")
			require.NoError(t, err)
			assert.True(t, info.IsDir())

			require.NotEmpty(t, extractProgress.calls)
			assert.Equal(t, "start", extractProgress.calls[0].kind)
			assert.Len(t, extractProgress.calls, len(entries)+1)
		})
	}
}

func TestRoundTrip_Gzip(t *testing.T) {
	mem := afero.NewMemMapFs()
	fs := hostfs.New(mem)
	require.NoError(t, afero.WriteFile(mem, "/src/dump.sql", []byte("select 1;\n"), 0o644))

	entries, err := fs.Collect("/src/dump.sql")
	require.NoError(t, err)

	a := New(openBuiltin(t), fs, nil)
	require.NoError(t, a.Compress(t.Context(), "/dump.sql.gz", formats.GZip, entries, nil))

	var calls []itemCall
	require.NoError(t, a.Open(t.Context(), "/dump.sql.gz", formats.GZip, func(name string, size int64) {
		calls = append(calls, itemCall{name, size})
	}))
	assert.Equal(t, []itemCall{{"/dump.sql.gz", -1}, {"dump.sql", 10}}, calls)

	require.NoError(t, a.Extract(t.Context(), "/dump.sql.gz", formats.GZip, "/out", nil))
	data, err := afero.ReadFile(mem, "/out/dump.sql")
	require.NoError(t, err)
	assert.Equal(t, "select 1;\n", string(data))
}

func TestRoundTrip_UnsupportedWriter(t *testing.T) {
	mem := afero.NewMemMapFs()
	fs := hostfs.New(mem)
	require.NoError(t, afero.WriteFile(mem, "/a.txt", []byte("a"), 0o644))

	a := New(openBuiltin(t), fs, nil)
	err := a.Compress(t.Context(), "/a.7z", formats.SevenZip, []FileEntry{{Path: "/a.txt", Size: 1}}, nil)
	require.Error(t, err)

	var creationErr *session.CreationError
	assert.ErrorAs(t, err, &creationErr)
	assert.False(t, fs.Exists("/a.7z"))
}
