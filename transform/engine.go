// Package transform applies an ordered list of tabular transformations to a
// dataset. The engine keeps no state between jobs.
package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

const DefaultCustomTimeout = 10 * time.Second

type Engine struct {
	plugins       *Registry
	customEnabled bool
	customTimeout time.Duration
}

type Option func(*Engine)

// WithCustomTransforms enables custom steps, resolved against registry and
// bounded by timeout each
func WithCustomTransforms(registry *Registry, timeout time.Duration) Option {
	return func(e *Engine) {
		e.customEnabled = true
		e.plugins = registry
		if timeout > 0 {
			e.customTimeout = timeout
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		plugins:       DefaultRegistry(),
		customTimeout: DefaultCustomTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs the steps in order. The first failing step stops the run with a
// *entity.TransformError; the input dataset is never modified.
func (e *Engine) Apply(ctx context.Context, ds *dataset.Dataset, steps []entity.Transformation) (*dataset.Dataset, error) {
	current := ds
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, &entity.TransformError{Step: i, Type: step.Type, Err: err}
		}

		next, err := e.applyStep(ctx, current, step)
		if err != nil {
			return nil, &entity.TransformError{Step: i, Type: step.Type, Err: err}
		}
		current = next.WithForm(ds.Form())
	}
	return current, nil
}

func (e *Engine) applyStep(ctx context.Context, ds *dataset.Dataset, step entity.Transformation) (*dataset.Dataset, error) {
	switch step.Type {
	case entity.TransformFilter:
		cond, err := CompileCondition(step.Condition, ds.Columns())
		if err != nil {
			return nil, err
		}
		return ds.Filter(cond.Match)

	case entity.TransformSelect:
		if len(step.Columns) == 0 {
			return nil, errors.New("select requires at least one column")
		}
		return ds.Select(step.Columns)

	case entity.TransformRename:
		return ds.Rename(step.Mapping)

	case entity.TransformAggregate:
		aggs := make([]dataset.Aggregation, len(step.Aggregations))
		for i, agg := range step.Aggregations {
			aggs[i] = dataset.Aggregation{Column: agg.Column, Func: agg.Func}
		}
		return ds.Aggregate(step.GroupBy, aggs)

	case entity.TransformCustom:
		return e.applyCustom(ctx, ds, step.Code)
	}
	return nil, fmt.Errorf("unknown transformation type %q", step.Type)
}

func (e *Engine) applyCustom(ctx context.Context, ds *dataset.Dataset, code string) (*dataset.Dataset, error) {
	if !e.customEnabled {
		return nil, entity.ErrCustomDisabled
	}
	plugin, ok := e.plugins.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("unknown custom transformation %q, available: %v", code, e.plugins.Names())
	}

	ctx, cancel := context.WithTimeout(ctx, e.customTimeout)
	defer cancel()
	return runPlugin(ctx, code, plugin, ds)
}
