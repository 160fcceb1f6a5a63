package catalog

import (
	"fmt"
	"sync"
)

// Registry is a closed, enumerable set of operation definitions keyed by
// name. The set is fixed at construction; lookups are safe for concurrent
// use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Definition
	order  []string
}

// NewRegistry builds a registry from the given definitions. Duplicate names
// are rejected — the catalog is the single authority on what a name means.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Definition, len(defs)),
	}
	for i := range defs {
		def := defs[i]
		if def.Name == "" {
			return nil, fmt.Errorf("operation definition missing name")
		}
		if _, exists := r.byName[def.Name]; exists {
			return nil, fmt.Errorf("duplicate operation %q", def.Name)
		}
		r.byName[def.Name] = &def
		r.order = append(r.order, def.Name)
	}
	return r, nil
}

// Lookup finds a definition by operation name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// Contains reports whether the registry knows the given operation name.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// List returns all definitions in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.byName[name])
	}
	return out
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
