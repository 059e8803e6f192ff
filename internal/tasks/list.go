package tasks

import (
	"context"
	"fmt"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/pipeline"
	"github.com/infracollect/archivekit/pkg/formats"
	"go.uber.org/zap"
)

const ListStepKind = "list"

type ListItem struct {
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
}

type ListResult struct {
	Archive   string     `json:"archive" yaml:"archive"`
	Format    string     `json:"format" yaml:"format"`
	Items     []ListItem `json:"items" yaml:"items"`
	Count     int        `json:"count" yaml:"count"`
	TotalSize uint64     `json:"total_size" yaml:"total_size"`
}

// resolveFormat parses explicit when set, otherwise detects the format
// from source. URLs are detected from their path.
func resolveFormat(explicit, source string) (formats.Format, error) {
	if explicit != "" {
		return formats.Parse(explicit)
	}
	if u, ok := remoteURL(source); ok {
		return formats.FromPath(u.Path)
	}
	return formats.FromPath(source)
}

func NewListStep(id string, engine *Engine, spec v1.ListTask, logger *zap.Logger) (pipeline.Step, error) {
	format, err := resolveFormat(spec.Format, spec.Source)
	if err != nil {
		return nil, err
	}

	return pipeline.StepFunction(id, ListStepKind, func(ctx context.Context) (pipeline.Result, error) {
		a, err := engine.Archive()
		if err != nil {
			return pipeline.Result{}, err
		}

		local, cleanup, err := engine.Resolve(ctx, spec.Source)
		defer cleanup()
		if err != nil {
			return pipeline.Result{}, err
		}

		result := ListResult{
			Archive: spec.Source,
			Format:  format.String(),
			Items:   []ListItem{},
		}
		err = a.Open(ctx, local, format, func(name string, size int64) {
			if size < 0 {
				return
			}
			result.Items = append(result.Items, ListItem{Name: name, Size: size})
			result.TotalSize += uint64(size)
		})
		if err != nil {
			return pipeline.Result{}, fmt.Errorf("failed to list %s: %w", spec.Source, err)
		}
		result.Count = len(result.Items)

		logger.Info("listed archive",
			zap.String("archive_path", spec.Source),
			zap.Stringer("format", format),
			zap.Int("items", result.Count),
		)
		return pipeline.Result{Data: result}, nil
	}), nil
}
