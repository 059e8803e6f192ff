// Package runner executes archive jobs described in YAML.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/archive"
	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/pipeline"
	"github.com/infracollect/archivekit/internal/refengine"
	"github.com/infracollect/archivekit/internal/session"
	"go.uber.org/zap"
)

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseArchiveJob parses and validates a YAML (or JSON) job file.
func ParseArchiveJob(data []byte) (v1.ArchiveJob, error) {
	var job v1.ArchiveJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.ArchiveJob{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	if err := defaultValidator.Struct(job); err != nil {
		return v1.ArchiveJob{}, fmt.Errorf("failed to validate job: %w", err)
	}

	var errs error
	for _, task := range job.Spec.Tasks {
		if _, err := ResolveTaskSpec(task); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if errs != nil {
		return v1.ArchiveJob{}, fmt.Errorf("failed to validate job: %w", errs)
	}

	return job, nil
}

// BuiltinLoader returns a static loader holding the builtin engine.
func BuiltinLoader() *session.StaticLoader {
	loader := session.NewStaticLoader()
	loader.Register(refengine.ModuleName, refengine.Symbols())
	return loader
}

// Options carries what a job file cannot express.
type Options struct {
	// Module is used when the job has no engine section (default: builtin).
	Module string
	// StaticLoader resolves engines with loader "static" (default:
	// BuiltinLoader).
	StaticLoader session.Loader
	// FS is the host filesystem (default: the OS filesystem).
	FS *hostfs.FS
	// Progress receives extract and compress progress.
	Progress archive.Progress
	// Stdout receives results for the stdout sink (default: os.Stdout).
	Stdout io.Writer
}

func (o Options) withDefaults() Options {
	if o.Module == "" {
		o.Module = refengine.ModuleName
	}
	if o.StaticLoader == nil {
		o.StaticLoader = BuiltinLoader()
	}
	if o.FS == nil {
		o.FS = hostfs.OS()
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	return o
}

type Runner struct {
	logger   *zap.Logger
	job      v1.ArchiveJob
	pipeline *pipeline.Pipeline
	encoder  pipeline.Encoder
	sink     pipeline.Sink
}

func New(ctx context.Context, logger *zap.Logger, job v1.ArchiveJob, opts Options) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	logger.Info("creating runner", zap.String("job_name", job.Metadata.Name))

	p, engine, err := createPipeline(ctx, logger.Named("pipeline"), job, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	encoder, err := buildEncoder(job.Spec.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to build encoder: %w", err)
	}

	sink, err := buildSink(ctx, logger, job, opts, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to build sink: %w", err)
	}

	return &Runner{
		logger:   logger,
		job:      job,
		pipeline: p,
		encoder:  encoder,
		sink:     sink,
	}, nil
}

func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		// Cleanup runs on a fresh context so a cancelled run still releases
		// the engine.
		if closeErr := r.pipeline.Close(context.Background()); closeErr != nil {
			r.logger.Error("failed to close collectors", zap.Error(closeErr))
		}
	}()

	if err := r.pipeline.Start(ctx); err != nil {
		r.discardSink(ctx)
		return err
	}

	results, err := r.pipeline.Run(ctx)
	if err != nil {
		r.discardSink(ctx)
		return fmt.Errorf("failed to run pipeline: %w", err)
	}

	if err := r.WriteResults(ctx, results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	return nil
}

// discardSink closes the sink after a failed run. Errors are only logged:
// an archive sink with nothing in it always fails to build its bundle.
func (r *Runner) discardSink(ctx context.Context) {
	if err := r.sink.Close(ctx); err != nil {
		r.logger.Debug("failed to close sink after a failed run", zap.String("sink", r.sink.Name()), zap.Error(err))
	}
}

// WriteResults encodes each result to <task id>.<ext> on the sink, then
// closes the sink.
func (r *Runner) WriteResults(ctx context.Context, results []pipeline.Result) error {
	var errs error
	for _, result := range results {
		reader, err := r.encoder.EncodeResult(ctx, result)
		if err != nil {
			errs = fmt.Errorf("failed to encode result for task %s: %w", result.ID, err)
			break
		}

		filename := fmt.Sprintf("%s.%s", result.ID, r.encoder.FileExtension())
		if err := r.sink.Write(ctx, filename, reader); err != nil {
			errs = fmt.Errorf("failed to write result for task %s: %w", result.ID, err)
			break
		}
	}

	if err := r.sink.Close(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to close sink: %w", err))
	}

	return errs
}
