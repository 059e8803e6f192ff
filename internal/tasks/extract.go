package tasks

import (
	"context"
	"fmt"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/archive"
	"github.com/infracollect/archivekit/internal/pipeline"
	"go.uber.org/zap"
)

const ExtractStepKind = "extract"

type ExtractResult struct {
	Archive     string `json:"archive" yaml:"archive"`
	Destination string `json:"destination" yaml:"destination"`
	Format      string `json:"format" yaml:"format"`
	Total       uint64 `json:"total" yaml:"total"`
	Items       int    `json:"items" yaml:"items"`
	Bytes       uint64 `json:"bytes" yaml:"bytes"`
}

// stepProgress tallies progress for a result, logs it and forwards it.
type stepProgress struct {
	root    string
	logger  *zap.Logger
	forward archive.Progress
	total   uint64
	items   int
	bytes   uint64
}

func (p *stepProgress) Start(path string, total uint64) {
	p.total = total
	p.logger.Debug("operation started", zap.String("path", path), zap.Uint64("total", total))
	if p.forward != nil {
		p.forward.Start(path, total)
	}
}

func (p *stepProgress) Progressed(path string, done uint64) {
	if path != p.root {
		p.items++
		p.bytes += done
	}
	p.logger.Debug("progressed", zap.String("path", path), zap.Uint64("bytes", done))
	if p.forward != nil {
		p.forward.Progressed(path, done)
	}
}

func NewExtractStep(id string, engine *Engine, spec v1.ExtractTask, logger *zap.Logger) (pipeline.Step, error) {
	format, err := resolveFormat(spec.Format, spec.Source)
	if err != nil {
		return nil, err
	}

	return pipeline.StepFunction(id, ExtractStepKind, func(ctx context.Context) (pipeline.Result, error) {
		a, err := engine.Archive()
		if err != nil {
			return pipeline.Result{}, err
		}

		local, cleanup, err := engine.Resolve(ctx, spec.Source)
		defer cleanup()
		if err != nil {
			return pipeline.Result{}, err
		}

		if err := engine.FS().EnsureDirectoryTree(spec.Destination); err != nil {
			return pipeline.Result{}, fmt.Errorf("failed to create destination %s: %w", spec.Destination, err)
		}

		progress := &stepProgress{root: spec.Destination, logger: logger, forward: engine.progress()}
		if err := a.Extract(ctx, local, format, spec.Destination, progress); err != nil {
			return pipeline.Result{}, fmt.Errorf("failed to extract %s: %w", spec.Source, err)
		}

		logger.Info("extracted archive",
			zap.String("archive_path", spec.Source),
			zap.String("destination", spec.Destination),
			zap.Int("items", progress.items),
		)
		return pipeline.Result{Data: ExtractResult{
			Archive:     spec.Source,
			Destination: spec.Destination,
			Format:      format.String(),
			Total:       progress.total,
			Items:       progress.items,
			Bytes:       progress.bytes,
		}}, nil
	}), nil
}
