package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/archive"
	"github.com/infracollect/archivekit/internal/pipeline"
	"github.com/infracollect/archivekit/internal/pipeline/archivers"
	"github.com/infracollect/archivekit/internal/pipeline/encoders"
	"github.com/infracollect/archivekit/internal/pipeline/sinks"
	"github.com/infracollect/archivekit/internal/session"
	"github.com/infracollect/archivekit/internal/tasks"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const engineCollectorID = "engine"

// BuildRegistry returns a registry with the engine collector and the
// archive tasks registered.
func BuildRegistry(logger *zap.Logger, job v1.ArchiveJob, opts Options) *pipeline.Registry {
	registry := pipeline.NewRegistry(logger)

	fetchCfg := tasks.FetchConfig{}
	if h := job.Spec.HTTP; h != nil {
		fetchCfg.Headers = h.Headers
		fetchCfg.Insecure = h.Insecure
		if h.Timeout != nil {
			fetchCfg.Timeout = time.Duration(*h.Timeout) * time.Second
		}
	}
	fetcher := tasks.NewFetcher(opts.FS, fetchCfg, logger)

	tasks.Register(registry, func(spec v1.EngineSpec, logger *zap.Logger) (*tasks.Engine, error) {
		var loader session.Loader = opts.StaticLoader
		if spec.Loader == "plugin" {
			loader = session.PluginLoader{}
		}
		return tasks.NewEngine(tasks.EngineConfig{
			Module:   spec.Module,
			Loader:   loader,
			FS:       opts.FS,
			Fetcher:  fetcher,
			Progress: opts.Progress,
		}, logger)
	})

	return registry
}

func createPipeline(ctx context.Context, logger *zap.Logger, job v1.ArchiveJob, opts Options) (*pipeline.Pipeline, *tasks.Engine, error) {
	logger.Info("creating pipeline", zap.String("job_name", job.Metadata.Name))
	registry := BuildRegistry(logger, job, opts)
	p := pipeline.NewPipeline(job.Metadata.Name, logger)

	engineSpec := v1.EngineSpec{Module: opts.Module}
	if job.Spec.Engine != nil {
		engineSpec = *job.Spec.Engine
	}

	collector, err := registry.CreateCollector(ctx, tasks.EngineCollectorKind, engineCollectorID, engineSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := p.AddCollector(engineCollectorID, collector); err != nil {
		return nil, nil, err
	}
	logger.Info("created engine collector", zap.String("collector_name", collector.Name()))

	for _, task := range job.Spec.Tasks {
		resolved, err := ResolveTaskSpec(task)
		if err != nil {
			return nil, nil, err
		}

		step, err := registry.CreateStep(ctx, resolved.Kind, task.ID, collector, resolved.Spec)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s task %s: %w", resolved.Kind, task.ID, err)
		}

		if err := p.AddStep(task.ID, step); err != nil {
			return nil, nil, fmt.Errorf("failed to add %s task: %w", resolved.Kind, err)
		}

		logger.Info("created task", zap.String("step_id", task.ID), zap.String("step_kind", resolved.Kind))
	}

	return p, collector.(*tasks.Engine), nil
}

// buildEncoder creates an encoder from the output spec. Defaults to compact
// JSON.
func buildEncoder(output *v1.OutputSpec) (pipeline.Encoder, error) {
	if output == nil || output.Encoding == nil {
		return encoders.NewJSONEncoder(""), nil
	}

	switch {
	case output.Encoding.JSON != nil:
		return encoders.NewJSONEncoder(output.Encoding.JSON.Indent), nil
	case output.Encoding.YAML != nil:
		return encoders.NewYAMLEncoder(output.Encoding.YAML.Indent), nil
	default:
		return nil, errors.New("unknown encoding type")
	}
}

// buildSink creates the sink from the job spec. Without an output or sink
// section results go to stdout. An archive section wraps the sink with an
// ArchiveSink whose bundle is built by the job's engine.
func buildSink(ctx context.Context, logger *zap.Logger, job v1.ArchiveJob, opts Options, engine *tasks.Engine) (pipeline.Sink, error) {
	sink, err := buildInnerSink(ctx, job, opts)
	if err != nil {
		return nil, err
	}

	if job.Spec.Output != nil && job.Spec.Output.Archive != nil {
		return wrapWithArchiveSink(logger, job, opts, engine, sink)
	}

	return sink, nil
}

func buildInnerSink(ctx context.Context, job v1.ArchiveJob, opts Options) (pipeline.Sink, error) {
	output := job.Spec.Output
	if output == nil || output.Sink == nil || output.Sink.Stdout != nil {
		if output != nil && output.Archive != nil {
			return nil, errors.New("stdout sink cannot be used with archive configuration")
		}
		return sinks.NewStreamSink(opts.Stdout), nil
	}

	if output.Sink.Filesystem != nil {
		return buildFilesystemSink(output.Sink.Filesystem, opts)
	}

	if output.Sink.S3 != nil {
		return buildS3Sink(ctx, output.Sink.S3)
	}

	return nil, errors.New("invalid sink configuration: no sink type specified")
}

// engineCompressor defers to the engine's archive, which only exists once
// the pipeline has started.
type engineCompressor struct {
	engine *tasks.Engine
}

func (c engineCompressor) Compress(ctx context.Context, dest string, format formats.Format, files []archive.FileEntry, progress archive.Progress) error {
	a, err := c.engine.Archive()
	if err != nil {
		return err
	}
	return a.Compress(ctx, dest, format, files, progress)
}

func wrapWithArchiveSink(logger *zap.Logger, job v1.ArchiveJob, opts Options, engine *tasks.Engine, inner pipeline.Sink) (pipeline.Sink, error) {
	spec := job.Spec.Output.Archive

	format := formats.Zip
	if spec.Format != "" {
		f, err := formats.Parse(spec.Format)
		if err != nil {
			return nil, fmt.Errorf("invalid archive format: %w", err)
		}
		format = f
	}

	staging, err := afero.TempDir(opts.FS.Fs(), "", "archivekit-bundle-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	archiver, err := archivers.NewEngineArchiver(engineCompressor{engine: engine}, opts.FS, format, staging, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create archiver: %w", err)
	}

	name := spec.Name
	if name == "" {
		name = job.Metadata.Name
	}

	return sinks.NewArchiveSink(inner, archiver, name), nil
}

func buildFilesystemSink(spec *v1.FilesystemSinkSpec, opts Options) (pipeline.Sink, error) {
	var dir, prefix string
	if spec.Path != nil {
		dir = *spec.Path
	}
	if spec.Prefix != nil {
		prefix = *spec.Prefix
	}

	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	return sinks.NewFilesystemSinkFromPath(opts.FS.Fs(), filepath.Join(dir, prefix))
}

func buildS3Sink(ctx context.Context, spec *v1.S3SinkSpec) (pipeline.Sink, error) {
	cfg := sinks.S3Config{
		Bucket:         spec.Bucket,
		ForcePathStyle: spec.ForcePathStyle,
	}

	if spec.Region != nil {
		cfg.Region = *spec.Region
	}
	if spec.Endpoint != nil {
		cfg.Endpoint = *spec.Endpoint
	}
	if spec.Prefix != nil {
		cfg.Prefix = *spec.Prefix
	}
	if spec.Credentials != nil {
		cfg.AccessKeyID = spec.Credentials.AccessKeyID
		cfg.SecretAccessKey = spec.Credentials.SecretAccessKey
	}

	return sinks.NewS3Sink(ctx, cfg)
}

// BuildVariables returns the variables available to job templates: the
// built-in JOB_* variables plus every name in allowedEnv, which must be set.
func BuildVariables(job v1.ArchiveJob, allowedEnv []string) (map[string]string, error) {
	date := time.Now().UTC()
	variables := map[string]string{
		"JOB_NAME":         job.Metadata.Name,
		"JOB_DATE_ISO8601": date.Format(pipeline.ISO8601Basic),
		"JOB_DATE_RFC3339": date.Format(time.RFC3339),
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}
