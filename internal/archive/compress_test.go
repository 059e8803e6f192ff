package archive

import (
	"errors"
	"testing"
	"time"

	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupCompress(t *testing.T) (*Archive, *hostfs.FS, *events, *mockFactory, []FileEntry) {
	t.Helper()
	fs, ev := newRecordingFs()
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, fs.EnsureDirectoryTree("/src/docs"))
	require.NoError(t, afero.WriteFile(fs.Fs(), "/src/docs/a.txt", []byte("0123456789"), 0o644))
	require.NoError(t, afero.WriteFile(fs.Fs(), "/src/empty", nil, 0o644))
	ev.reset()

	files := []FileEntry{
		{Path: "/src/docs", Name: "docs", Dir: true, MTime: mtime},
		{Path: "/src/docs/a.txt", Name: "docs/a.txt", Size: 10, MTime: mtime},
		{Path: "/src/empty", Size: 0},
	}

	factory := &mockFactory{events: ev, writer: newMockWriter(ev)}
	return New(factory, fs, zaptest.NewLogger(t)), fs, ev, factory, files
}

func TestArchive_Compress_EmptyListTouchesNothing(t *testing.T) {
	a, fs, ev, _, _ := setupCompress(t)
	progress := &recordingProgress{}

	for _, files := range [][]FileEntry{nil, {}} {
		err := a.Compress(t.Context(), "/out.zip", formats.Zip, files, progress)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyFileList)
	}

	assert.Empty(t, ev.all())
	assert.Empty(t, progress.calls)
	assert.False(t, fs.Exists("/out.zip"))
}

func TestArchive_Compress_AnswersFromFileList(t *testing.T) {
	a, fs, ev, factory, files := setupCompress(t)
	factory.writer.probeOutOfRange = true
	progress := &recordingProgress{}

	require.NoError(t, a.Compress(t.Context(), "/out.zip", formats.Zip, files, progress))

	writerAt := ev.index("new writer zip")
	createAt := ev.index("create /out.zip")
	require.NotEqual(t, -1, writerAt)
	require.NotEqual(t, -1, createAt)
	assert.Less(t, writerAt, createAt, "writer must exist before the destination")

	w := factory.writer
	require.Len(t, w.written, 3)
	for i, item := range w.written {
		assert.Equal(t, engine.UpdateItemInfo{NewData: true, NewProperties: true, IndexInArchive: engine.NoArchiveIndex}, item.info, "item %d", i)
		assert.False(t, item.anti)
		assert.True(t, item.extra.IsEmpty(), "unknown property must be empty")
	}

	assert.Equal(t, "docs", w.written[0].path)
	assert.True(t, w.written[0].dir)
	assert.False(t, w.written[0].stream)
	mtime, ok := w.written[0].mtime.AsTime()
	require.True(t, ok)
	assert.True(t, mtime.Equal(files[0].MTime))

	assert.Equal(t, "docs/a.txt", w.written[1].path)
	assert.Equal(t, uint64(10), w.written[1].size)
	assert.Equal(t, "0123456789", string(w.written[1].data))

	assert.Equal(t, "empty", w.written[2].path)
	assert.True(t, w.written[2].stream)
	assert.True(t, w.written[2].mtime.IsEmpty())

	assert.ErrorIs(t, w.outOfRangeErr, capability.ErrInvalidArg)
	require.NotNil(t, w.password)
	assert.False(t, *w.password)

	assert.Equal(t, []progressCall{
		{"start", "/out.zip", 10},
		{"progressed", "/out.zip", 0},
		{"progressed", "/out.zip", 10},
		{"progressed", "/out.zip", 10},
	}, progress.calls)

	data, err := afero.ReadFile(fs.Fs(), "/out.zip")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	assert.True(t, w.Destroyed(), "writer must be released")
}

func TestArchive_Compress_Failures(t *testing.T) {
	writerErr := errors.New("no writer")

	tests := []struct {
		name        string
		setup       func(f *mockFactory, files []FileEntry) []FileEntry
		wantErr     error
		wantCreated bool
	}{
		{
			name: "writer creation fails",
			setup: func(f *mockFactory, files []FileEntry) []FileEntry {
				f.writerErr = writerErr
				return files
			},
			wantErr: writerErr,
		},
		{
			name: "engine update fails",
			setup: func(f *mockFactory, files []FileEntry) []FileEntry {
				f.writer.updateErr = capability.ErrFail
				return files
			},
			wantErr:     ErrProtocol,
			wantCreated: true,
		},
		{
			name: "source file missing",
			setup: func(f *mockFactory, files []FileEntry) []FileEntry {
				return append(files, FileEntry{Path: "/src/gone.txt", Size: 3})
			},
			wantErr:     ErrResource,
			wantCreated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, fs, ev, factory, files := setupCompress(t)
			files = tt.setup(factory, files)

			err := a.Compress(t.Context(), "/out.zip", formats.Zip, files, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, tt.wantCreated, ev.index("create /out.zip") != -1)
			assert.False(t, fs.Exists("/out.zip"), "partial archive must be removed")
			assert.Equal(t, int32(0), factory.writer.RefCount())
		})
	}
}

func TestArchive_Compress_DestinationNotWritable(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/src/a.txt", []byte("a"), 0o644))
	ev := &events{}
	factory := &mockFactory{events: ev, writer: newMockWriter(ev)}
	a := New(factory, hostfs.New(afero.NewReadOnlyFs(mem)), nil)

	err := a.Compress(t.Context(), "/out.zip", formats.Zip, []FileEntry{{Path: "/src/a.txt", Size: 1}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResource)
	assert.Equal(t, []string{"new writer zip"}, ev.all())
	assert.Equal(t, int32(0), factory.writer.RefCount())
}
