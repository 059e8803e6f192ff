package tasks

import (
	"context"

	v1 "github.com/infracollect/archivekit/apis/v1"
	"github.com/infracollect/archivekit/internal/pipeline"
	"go.uber.org/zap"
)

// Register adds the engine collector and the archive steps to registry.
// newEngine builds the engine collector from the job's engine spec.
func Register(registry *pipeline.Registry, newEngine func(spec v1.EngineSpec, logger *zap.Logger) (*Engine, error)) {
	registry.RegisterCollector(
		EngineCollectorKind,
		pipeline.NewCollectorFactory(EngineCollectorKind, func(_ context.Context, logger *zap.Logger, _ string, spec v1.EngineSpec) (pipeline.Collector, error) {
			return newEngine(spec, logger)
		}),
	)

	registry.RegisterStep(
		ListStepKind,
		pipeline.NewStepFactory(ListStepKind, func(_ context.Context, logger *zap.Logger, id string, engine *Engine, spec v1.ListTask) (pipeline.Step, error) {
			return NewListStep(id, engine, spec, logger)
		}),
	)

	registry.RegisterStep(
		ExtractStepKind,
		pipeline.NewStepFactory(ExtractStepKind, func(_ context.Context, logger *zap.Logger, id string, engine *Engine, spec v1.ExtractTask) (pipeline.Step, error) {
			return NewExtractStep(id, engine, spec, logger)
		}),
	)

	registry.RegisterStep(
		CompressStepKind,
		pipeline.NewStepFactory(CompressStepKind, func(_ context.Context, logger *zap.Logger, id string, engine *Engine, spec v1.CompressTask) (pipeline.Step, error) {
			return NewCompressStep(id, engine, spec, logger)
		}),
	)
}
