package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// StepEntry holds a step with its ID for ordered execution.
type StepEntry struct {
	ID   string
	Step Step
}

type collectorEntry struct {
	id        string
	collector Collector
	started   bool
}

type Pipeline struct {
	name       string
	date       time.Time
	logger     *zap.Logger
	collectors []*collectorEntry
	steps      []StepEntry
}

func NewPipeline(name string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		name:   name,
		date:   time.Now().UTC(),
		logger: logger,
	}
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) Date() time.Time {
	return p.date
}

func (p *Pipeline) AddCollector(id string, collector Collector) error {
	if _, ok := p.GetCollector(id); ok {
		return fmt.Errorf("collector %s already exists", id)
	}

	p.collectors = append(p.collectors, &collectorEntry{id: id, collector: collector})
	return nil
}

func (p *Pipeline) AddStep(id string, step Step) error {
	if lo.ContainsBy(p.steps, func(e StepEntry) bool { return e.ID == id }) {
		return fmt.Errorf("step %s already exists", id)
	}

	p.steps = append(p.steps, StepEntry{ID: id, Step: step})
	return nil
}

func (p *Pipeline) GetCollector(id string) (Collector, bool) {
	entry, ok := lo.Find(p.collectors, func(e *collectorEntry) bool { return e.id == id })
	if !ok {
		return nil, false
	}
	return entry.collector, true
}

func (p *Pipeline) Steps() []StepEntry {
	return p.steps
}

// Start starts every collector in the order they were added. On failure the
// collectors already started stay started and must be closed with Close.
func (p *Pipeline) Start(ctx context.Context) error {
	for _, entry := range p.collectors {
		if entry.started {
			continue
		}
		if err := entry.collector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start collector '%s' (%s): %w", entry.id, entry.collector.Name(), err)
		}
		entry.started = true
		p.logger.Debug("started collector", zap.String("collector_id", entry.id), zap.String("collector_name", entry.collector.Name()))
	}
	return nil
}

// Close closes the started collectors in reverse order.
func (p *Pipeline) Close(ctx context.Context) error {
	var errs error
	for i := len(p.collectors) - 1; i >= 0; i-- {
		entry := p.collectors[i]
		if !entry.started {
			continue
		}
		entry.started = false
		if err := entry.collector.Close(ctx); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close collector '%s': %w", entry.id, err))
		}
	}
	return errs
}

// Run resolves the steps in order and returns their results in the same
// order. It stops at the first failing step.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(p.steps))

	for _, entry := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled while running pipeline at step '%s': %w", entry.ID, err)
		}

		logger := p.logger.With(zap.String("step_id", entry.ID), zap.String("step_kind", entry.Step.Kind()))
		logger.Info("running step")

		started := time.Now()
		result, err := entry.Step.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve step '%s': %w", entry.ID, err)
		}
		elapsed := time.Since(started)

		result.ID = entry.ID
		result.Meta = lo.Assign(result.Meta, map[string]string{
			"kind":     entry.Step.Kind(),
			"duration": elapsed.String(),
		})
		results = append(results, result)

		logger.Info("step finished", zap.Duration("duration", elapsed))
	}

	return results, nil
}
