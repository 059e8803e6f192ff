package tasks

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/archive"
	"github.com/infracollect/archivekit/internal/pipeline"
	"github.com/infracollect/archivekit/pkg/formats"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const CompressStepKind = "compress"

type CompressResult struct {
	Destination string `json:"destination" yaml:"destination"`
	Format      string `json:"format" yaml:"format"`
	Files       int    `json:"files" yaml:"files"`
	Directories int    `json:"directories" yaml:"directories"`
	Skipped     int    `json:"skipped" yaml:"skipped"`
	Bytes       uint64 `json:"bytes" yaml:"bytes"`
	ArchiveSize int64  `json:"archive_size" yaml:"archive_size"`
}

// selectEntries applies prefix and filter to entries. The filter sees the
// prefixed name.
func selectEntries(entries []archive.FileEntry, prefix string, filter *Filter) ([]archive.FileEntry, error) {
	selected := make([]archive.FileEntry, 0, len(entries))
	for _, e := range entries {
		if prefix != "" {
			e.Name = path.Join(prefix, e.ArchiveName())
		}
		ok, err := filter.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

func NewCompressStep(id string, engine *Engine, spec v1.CompressTask, logger *zap.Logger) (pipeline.Step, error) {
	var (
		format formats.Format
		err    error
	)
	if spec.Format != "" {
		format, err = formats.Parse(spec.Format)
	} else {
		format, err = formats.FromPath(spec.Destination)
	}
	if err != nil {
		return nil, err
	}

	filter, err := NewFilter(spec.Filter)
	if err != nil {
		return nil, err
	}

	return pipeline.StepFunction(id, CompressStepKind, func(ctx context.Context) (pipeline.Result, error) {
		a, err := engine.Archive()
		if err != nil {
			return pipeline.Result{}, err
		}

		entries, err := engine.FS().Collect(spec.Sources...)
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("failed to collect sources: %w", err)
		}

		selected, err := selectEntries(entries, spec.NamePrefix, filter)
		if err != nil {
			return pipeline.Result{}, err
		}

		if dir := filepath.Dir(spec.Destination); dir != "." {
			if err := engine.FS().EnsureDirectoryTree(dir); err != nil {
				return pipeline.Result{}, fmt.Errorf("failed to create directory for %s: %w", spec.Destination, err)
			}
		}

		progress := &stepProgress{logger: logger, forward: engine.progress()}
		if err := a.Compress(ctx, spec.Destination, format, selected, progress); err != nil {
			return pipeline.Result{}, fmt.Errorf("failed to compress %s: %w", spec.Destination, err)
		}

		result := CompressResult{
			Destination: spec.Destination,
			Format:      format.String(),
			Files:       lo.CountBy(selected, func(e archive.FileEntry) bool { return !e.Dir }),
			Directories: lo.CountBy(selected, func(e archive.FileEntry) bool { return e.Dir }),
			Skipped:     len(entries) - len(selected),
			Bytes:       lo.SumBy(selected, func(e archive.FileEntry) uint64 { return e.Size }),
		}
		if info, err := engine.FS().Stat(spec.Destination); err == nil {
			result.ArchiveSize = info.Size()
		}

		logger.Info("compressed archive",
			zap.String("destination", spec.Destination),
			zap.Stringer("format", format),
			zap.Int("files", result.Files),
			zap.Int("skipped", result.Skipped),
			zap.String("filter", filter.String()),
		)
		return pipeline.Result{Data: result}, nil
	}), nil
}
