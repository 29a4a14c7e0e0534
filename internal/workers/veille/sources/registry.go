// Package sources holds the veille adapters, one per source kind, and the
// registry the collector resolves them from.
package sources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/models"
)

// Adapter produces a finite sequence of items for one descriptor.
type Adapter interface {
	Kind() models.SourceKind
	// Endpoint names the shared external dependency a descriptor hits, or
	// "" when the source owns its endpoint and needs no shared limiter.
	Endpoint(desc models.SourceDescriptor) string
	Fetch(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.VeilleItem, error)
}

// Fetcher is the part of the resilient HTTP client adapters rely on.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error)
}

type Registry struct {
	mu       sync.RWMutex
	adapters map[models.SourceKind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.SourceKind]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register replaces any adapter already bound to the same kind.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

// Get resolves the adapter for kind. An unregistered kind is an
// invalid_format failure of that source.
func (r *Registry) Get(kind models.SourceKind) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	if !ok {
		return nil, apperrors.NewInvalidFormatError("source kind", fmt.Errorf("no adapter registered for %q", kind))
	}
	return a, nil
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

func capItems(items []models.VeilleItem, limit int) []models.VeilleItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
