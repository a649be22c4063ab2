package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
)

// Plugin is a named, precompiled transformation selected by a custom step.
// It only sees the dataset; it is given no filesystem or network handle.
type Plugin func(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error)

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// DefaultRegistry holds the built-in plugins
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("drop_nulls", func(_ context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.DropNulls(), nil
	})
	r.Register("drop_duplicates", func(_ context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.DropDuplicates(), nil
	})
	r.Register("trim_strings", func(_ context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
		return ds.MapValues(func(v any) any {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
			return v
		}), nil
	})
	return r
}

func (r *Registry) Register(name string, p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[name] = p
}

func (r *Registry) Lookup(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[strings.TrimSpace(name)]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runPlugin gives up waiting once ctx is done. A plugin that ignores ctx keeps
// its goroutine until it returns, but its result is discarded.
func runPlugin(ctx context.Context, name string, p Plugin, ds *dataset.Dataset) (*dataset.Dataset, error) {
	type result struct {
		ds  *dataset.Dataset
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("plugin %q panicked: %v", name, rec)}
			}
		}()
		out, err := p(ctx, ds)
		done <- result{ds: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.ds == nil {
			return nil, fmt.Errorf("plugin %q returned no dataset", name)
		}
		return res.ds, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("plugin %q: %w", name, ctx.Err())
	}
}
