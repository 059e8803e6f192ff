package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

type CollectorFactory func(ctx context.Context, logger *zap.Logger, id string, input any) (Collector, error)
type StepFactory func(ctx context.Context, logger *zap.Logger, id string, collector Collector, input any) (Step, error)

// TypedCollectorFactory is a strongly-typed collector factory. T is the
// concrete spec type, e.g. v1.EngineSpec.
type TypedCollectorFactory[T any] func(ctx context.Context, logger *zap.Logger, id string, spec T) (Collector, error)

// TypedStepFactory is a strongly-typed step factory. C is the concrete
// collector type and S the task spec type, e.g. v1.ListTask.
type TypedStepFactory[C Collector, S any] func(ctx context.Context, logger *zap.Logger, id string, collector C, spec S) (Step, error)

// NewCollectorFactory wraps f, checking the spec type before calling it.
func NewCollectorFactory[T any](kind string, f TypedCollectorFactory[T]) CollectorFactory {
	return func(ctx context.Context, logger *zap.Logger, id string, input any) (Collector, error) {
		spec, ok := input.(T)
		if !ok {
			return nil, fmt.Errorf("invalid collector spec for kind %q with id %s: %T", kind, id, input)
		}
		return f(ctx, logger, id, spec)
	}
}

// NewStepFactory wraps f, checking the collector and spec types before
// calling it.
func NewStepFactory[C Collector, S any](kind string, f TypedStepFactory[C, S]) StepFactory {
	return func(ctx context.Context, logger *zap.Logger, id string, collector Collector, input any) (Step, error) {
		if collector == nil {
			return nil, fmt.Errorf("step kind %q requires a collector, got nil", kind)
		}

		typedCollector, ok := collector.(C)
		if !ok {
			return nil, fmt.Errorf("invalid collector type for step %q with id %s: %T", kind, id, collector)
		}

		spec, ok := input.(S)
		if !ok {
			return nil, fmt.Errorf("invalid step spec for kind %q with id %s: %T", kind, id, input)
		}

		return f(ctx, logger, id, typedCollector, spec)
	}
}

// UnsupportedTypeError is returned when a collector or step kind is not
// registered.
type UnsupportedTypeError struct {
	Category  string
	Kind      string
	Available []string
}

func (e *UnsupportedTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unsupported %s type %q: no %ss registered", e.Category, e.Kind, e.Category)
	}
	return fmt.Sprintf("unsupported %s type %q (available: %v)", e.Category, e.Kind, e.Available)
}

type Registry struct {
	mu         sync.RWMutex
	collectors map[string]CollectorFactory
	steps      map[string]StepFactory
	logger     *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		collectors: make(map[string]CollectorFactory),
		steps:      make(map[string]StepFactory),
		logger:     logger,
	}
}

// RegisterCollector adds a collector factory. Registering a kind twice
// panics.
func (r *Registry) RegisterCollector(kind string, factory CollectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collectors[kind]; ok {
		panic(fmt.Sprintf("collector kind %q registered twice", kind))
	}
	r.collectors[kind] = factory
}

// RegisterStep adds a step factory. Registering a kind twice panics.
func (r *Registry) RegisterStep(kind string, factory StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[kind]; ok {
		panic(fmt.Sprintf("step kind %q registered twice", kind))
	}
	r.steps[kind] = factory
}

func (r *Registry) CreateCollector(ctx context.Context, kind, id string, spec any) (Collector, error) {
	r.mu.RLock()
	factory, ok := r.collectors[kind]
	available := sortedKeys(r.collectors)
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "collector", Kind: kind, Available: available}
	}
	return factory(ctx, r.logger.Named(kind), id, spec)
}

func (r *Registry) CreateStep(ctx context.Context, kind, id string, collector Collector, spec any) (Step, error) {
	r.mu.RLock()
	factory, ok := r.steps[kind]
	available := sortedKeys(r.steps)
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "step", Kind: kind, Available: available}
	}
	return factory(ctx, r.logger.Named(kind), id, collector, spec)
}

func (r *Registry) AvailableCollectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.collectors)
}

func (r *Registry) AvailableSteps() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.steps)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
