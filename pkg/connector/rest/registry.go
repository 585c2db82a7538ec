package rest

import (
	"context"
	"sort"
	"sync"

	"github.com/ajitpratap0/nebula-restclient/pkg/errors"
	"github.com/ajitpratap0/nebula-restclient/pkg/source"
)

// SourceFactory opens the record source of one sub-task
type SourceFactory func(ctx context.Context, c *Connector, t *Task) (source.Source, error)

// Registry maps source kinds to factories
type Registry struct {
	sources map[string]SourceFactory
	mu      sync.RWMutex
}

// NewRegistry returns a registry holding the built-in http and file kinds
func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]SourceFactory)}
	r.sources["http"] = openHTTPSource
	r.sources["file"] = openFileSource
	return r
}

// RegisterSource adds a source kind
func (r *Registry) RegisterSource(kind string, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "source kind %s already registered", kind)
	}
	r.sources[kind] = factory
	return nil
}

// CreateSource opens a source of the given kind
func (r *Registry) CreateSource(ctx context.Context, kind string, c *Connector, t *Task) (source.Source, error) {
	r.mu.RLock()
	factory, exists := r.sources[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "source kind %s not found", kind)
	}
	return factory(ctx, c, t)
}

// ListSources returns the registered kinds, sorted
func (r *Registry) ListSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.sources))
	for kind := range r.sources {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
