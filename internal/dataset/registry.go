// Package dataset resolves logical dataset references to files on disk and
// loads supported tabular formats into in-memory tables.
package dataset

import (
	"strings"
	"sync"

	"tabserve/internal/domain"
)

// Source is one named datasource: a logical ID mapped to a filesystem root.
type Source struct {
	ID      string
	Root    string
	Default bool
}

// Registry maps datasource IDs to their roots. Dataset references in
// requests and query plans resolve through it; an empty reference resolves
// to the default source.
type Registry struct {
	mu        sync.RWMutex
	sources   map[string]Source
	defaultID string
}

// NewRegistry builds a registry from the configured sources. The first
// source marked Default (or the first source, when none is marked) becomes
// the default.
func NewRegistry(sources []Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, src := range sources {
		if src.ID == "" || src.Root == "" {
			return nil, domain.ErrValidation("datasource requires both id and root")
		}
		if _, exists := r.sources[src.ID]; exists {
			return nil, domain.ErrValidation("duplicate datasource id %q", src.ID)
		}
		r.sources[src.ID] = src
		if src.Default && r.defaultID == "" {
			r.defaultID = src.ID
		}
	}
	if r.defaultID == "" && len(sources) > 0 {
		r.defaultID = sources[0].ID
	}
	return r, nil
}

// Resolve returns the source for the given ID, or the default source when
// the ID is empty.
func (r *Registry) Resolve(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" {
		id = r.defaultID
	}
	if id == "" {
		return Source{}, domain.ErrValidation("no datasource configured")
	}
	src, ok := r.sources[strings.TrimSpace(id)]
	if !ok {
		return Source{}, domain.ErrNotFound("datasource %q not found", id)
	}
	return src, nil
}

// List returns all registered sources.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	return out
}
