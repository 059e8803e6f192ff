package runner

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/tasks"
	"github.com/klauspost/compress/zip"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBuildVariables(t *testing.T) {
	job := v1.ArchiveJob{Metadata: v1.Metadata{Name: "test-job"}}

	t.Run("built-in variables are set", func(t *testing.T) {
		variables, err := BuildVariables(job, nil)
		require.NoError(t, err)

		assert.Equal(t, "test-job", variables["JOB_NAME"])
		_, err = time.Parse("20060102T150405Z", variables["JOB_DATE_ISO8601"])
		require.NoError(t, err)
		_, err = time.Parse(time.RFC3339, variables["JOB_DATE_RFC3339"])
		require.NoError(t, err)
		assert.Len(t, variables, 3)
	})

	t.Run("allowed env variables are included", func(t *testing.T) {
		t.Setenv("VAR1", "value1")
		t.Setenv("VAR2", "value2")

		variables, err := BuildVariables(job, []string{"VAR1", "VAR2"})
		require.NoError(t, err)
		assert.Equal(t, "value1", variables["VAR1"])
		assert.Equal(t, "value2", variables["VAR2"])
	})

	t.Run("every unset variable is reported", func(t *testing.T) {
		_, err := BuildVariables(job, []string{"MISSING1", "MISSING2"})
		require.Error(t, err)
		assert.ErrorContains(t, err, `"MISSING1" is not set`)
		assert.ErrorContains(t, err, `"MISSING2" is not set`)
	})
}

func TestParseArchiveJob(t *testing.T) {
	valid := `
kind: ArchiveJob
metadata:
  name: nightly
spec:
  engine:
    module: builtin
    loader: static
  tasks:
    - id: inspect
      list:
        source: /data/${JOB_NAME}.zip
    - id: pack
      compress:
        sources: [/src]
        destination: /out/src.tar
        filter: size > 0u
  output:
    encoding:
      yaml:
        indent: 2
    sink:
      filesystem:
        path: /results
`

	t.Run("valid job", func(t *testing.T) {
		job, err := ParseArchiveJob([]byte(valid))
		require.NoError(t, err)
		assert.Equal(t, "nightly", job.Metadata.Name)
		require.Len(t, job.Spec.Tasks, 2)
		assert.Equal(t, "/data/${JOB_NAME}.zip", job.Spec.Tasks[0].List.Source)
		assert.Equal(t, "size > 0u", job.Spec.Tasks[1].Compress.Filter)
		assert.Equal(t, 2, job.Spec.Output.Encoding.YAML.Indent)
		assert.Equal(t, "/results", *job.Spec.Output.Sink.Filesystem.Path)
	})

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "not yaml",
			data:    "kind: [",
			wantErr: "failed to unmarshal",
		},
		{
			name:    "wrong kind",
			data:    "kind: CollectJob\nmetadata: {name: a}\nspec: {tasks: [{id: t, list: {source: a.zip}}]}",
			wantErr: "Kind",
		},
		{
			name:    "missing name",
			data:    "kind: ArchiveJob\nmetadata: {}\nspec: {tasks: [{id: t, list: {source: a.zip}}]}",
			wantErr: "Name",
		},
		{
			name:    "no tasks",
			data:    "kind: ArchiveJob\nmetadata: {name: a}\nspec: {tasks: []}",
			wantErr: "Tasks",
		},
		{
			name:    "task without a type",
			data:    "kind: ArchiveJob\nmetadata: {name: a}\nspec: {tasks: [{id: t}]}",
			wantErr: `task "t" has no type specified`,
		},
		{
			name:    "task with two types",
			data:    "kind: ArchiveJob\nmetadata: {name: a}\nspec: {tasks: [{id: t, list: {source: a.zip}, extract: {source: a.zip, destination: /out}}]}",
			wantErr: `task "t" has more than one type specified`,
		},
		{
			name:    "unknown loader",
			data:    "kind: ArchiveJob\nmetadata: {name: a}\nspec: {engine: {module: x, loader: dlopen}, tasks: [{id: t, list: {source: a.zip}}]}",
			wantErr: "Loader",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArchiveJob([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestExpandTemplates_ArchiveJob(t *testing.T) {
	job := v1.ArchiveJob{
		Metadata: v1.Metadata{Name: "nightly"},
		Spec: v1.ArchiveJobSpec{
			Engine: &v1.EngineSpec{Module: "${ENGINE}"},
			Tasks: []v1.Task{
				{ID: "get", Extract: &v1.ExtractTask{Source: "s3-${JOB_NAME}.zip", Destination: "/out/${JOB_NAME}"}},
			},
			Output: &v1.OutputSpec{
				Sink: &v1.SinkSpec{
					Filesystem: &v1.FilesystemSinkSpec{Path: lo.ToPtr("/results/${JOB_NAME}")},
				},
			},
		},
	}

	require.NoError(t, ExpandTemplates(&job, map[string]string{"JOB_NAME": "nightly", "ENGINE": "builtin"}))
	assert.Equal(t, "builtin", job.Spec.Engine.Module)
	assert.Equal(t, "s3-nightly.zip", job.Spec.Tasks[0].Extract.Source)
	assert.Equal(t, "/out/nightly", job.Spec.Tasks[0].Extract.Destination)
	assert.Equal(t, "/results/nightly", *job.Spec.Output.Sink.Filesystem.Path)
}

func writeTree(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

func TestRunner_StdoutSink(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeTree(t, mem, map[string]string{
		"/src/a.txt":     "alpha",
		"/src/sub/b.txt": "bravo",
	})

	job := v1.ArchiveJob{
		Kind:     "ArchiveJob",
		Metadata: v1.Metadata{Name: "stdout"},
		Spec: v1.ArchiveJobSpec{
			Tasks: []v1.Task{
				{ID: "pack", Compress: &v1.CompressTask{Sources: []string{"/src"}, Destination: "/out/src.zip"}},
				{ID: "inspect", List: &v1.ListTask{Source: "/out/src.zip"}},
			},
		},
	}

	var stdout bytes.Buffer
	r, err := New(t.Context(), zaptest.NewLogger(t), job, Options{FS: hostfs.New(mem), Stdout: &stdout})
	require.NoError(t, err)
	require.NoError(t, r.Run(t.Context()))

	decoder := json.NewDecoder(&stdout)
	var packed tasks.CompressResult
	require.NoError(t, decoder.Decode(&packed))
	assert.Equal(t, 2, packed.Files)

	var listed tasks.ListResult
	require.NoError(t, decoder.Decode(&listed))
	assert.Equal(t, "zip", listed.Format)
	assert.Equal(t, uint64(len("alpha")+len("bravo")), listed.TotalSize)
}

func TestRunner_FilesystemSinkWithArchive(t *testing.T) {
	mem := afero.NewMemMapFs()
	writeTree(t, mem, map[string]string{
		"/src/a.txt": "alpha",
	})

	job := v1.ArchiveJob{
		Kind:     "ArchiveJob",
		Metadata: v1.Metadata{Name: "bundle"},
		Spec: v1.ArchiveJobSpec{
			Engine: &v1.EngineSpec{Module: "builtin", Loader: "static"},
			Tasks: []v1.Task{
				{ID: "pack", Compress: &v1.CompressTask{Sources: []string{"/src"}, Destination: "/out/src.tar"}},
				{ID: "unpack", Extract: &v1.ExtractTask{Source: "/out/src.tar", Destination: "/restored"}},
			},
			Output: &v1.OutputSpec{
				Encoding: &v1.EncodingSpec{YAML: &v1.YAMLEncodingSpec{Indent: 2}},
				Sink: &v1.SinkSpec{
					Filesystem: &v1.FilesystemSinkSpec{Path: lo.ToPtr("/results")},
				},
				Archive: &v1.ArchiveSpec{Name: "report"},
			},
		},
	}

	r, err := New(t.Context(), zaptest.NewLogger(t), job, Options{FS: hostfs.New(mem)})
	require.NoError(t, err)
	require.NoError(t, r.Run(t.Context()))

	restored, err := afero.ReadFile(mem, "/restored/src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(restored))

	bundle, err := afero.ReadFile(mem, "/results/report.zip")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	require.NoError(t, err)
	names := lo.Map(zr.File, func(f *zip.File, _ int) string { return f.Name })
	assert.ElementsMatch(t, []string{"pack.yaml", "unpack.yaml"}, names)
}

func TestRunner_StdoutWithArchiveRejected(t *testing.T) {
	job := v1.ArchiveJob{
		Metadata: v1.Metadata{Name: "bad"},
		Spec: v1.ArchiveJobSpec{
			Tasks: []v1.Task{{ID: "inspect", List: &v1.ListTask{Source: "/a.zip"}}},
			Output: &v1.OutputSpec{
				Sink:    &v1.SinkSpec{Stdout: &v1.StdoutSinkSpec{}},
				Archive: &v1.ArchiveSpec{},
			},
		},
	}

	_, err := New(t.Context(), zaptest.NewLogger(t), job, Options{FS: hostfs.New(afero.NewMemMapFs())})
	assert.ErrorContains(t, err, "stdout sink cannot be used with archive configuration")
}

func TestRunner_TaskFailureStopsRun(t *testing.T) {
	mem := afero.NewMemMapFs()
	job := v1.ArchiveJob{
		Metadata: v1.Metadata{Name: "missing"},
		Spec: v1.ArchiveJobSpec{
			Tasks: []v1.Task{{ID: "inspect", List: &v1.ListTask{Source: "/nowhere.zip"}}},
			Output: &v1.OutputSpec{
				Sink: &v1.SinkSpec{Filesystem: &v1.FilesystemSinkSpec{Path: lo.ToPtr("/results")}},
			},
		},
	}

	r, err := New(t.Context(), zaptest.NewLogger(t), job, Options{FS: hostfs.New(mem)})
	require.NoError(t, err)
	err = r.Run(t.Context())
	require.Error(t, err)
	assert.ErrorContains(t, err, "inspect")

	exists, _ := afero.Exists(mem, "/results/inspect.json")
	assert.False(t, exists)
}

func TestRunner_UnknownEngineModule(t *testing.T) {
	job := v1.ArchiveJob{
		Metadata: v1.Metadata{Name: "missing-engine"},
		Spec: v1.ArchiveJobSpec{
			Engine: &v1.EngineSpec{Module: "not-registered"},
			Tasks:  []v1.Task{{ID: "inspect", List: &v1.ListTask{Source: "/a.zip"}}},
		},
	}

	var stdout bytes.Buffer
	r, err := New(t.Context(), zaptest.NewLogger(t), job, Options{FS: hostfs.New(afero.NewMemMapFs()), Stdout: &stdout})
	require.NoError(t, err)
	assert.Error(t, r.Run(t.Context()))
	assert.Empty(t, stdout.String())
}
