package vec

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/viant/vecindex/vector"
)

// Registry holds indexes by unique name.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Create registers a new Unbuilt index.
func (r *Registry) Create(meta Meta, opts Options) (*Index, error) {
	ix, err := New(meta, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Add(ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// Add registers an existing index, for example one restored from a
// snapshot.
func (r *Registry) Add(ix *Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexes[ix.Name()]; ok {
		return fmt.Errorf("vec: %q: %w", ix.Name(), ErrIndexExists)
	}
	r.indexes[ix.Name()] = ix
	return nil
}

// Get returns the named index or an error wrapping vector.ErrNotFound.
func (r *Registry) Get(name string) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexes[name]
	if !ok {
		return nil, fmt.Errorf("vec: index %q: %w", name, vector.ErrNotFound)
	}
	return ix, nil
}

// List returns every index ordered by name.
func (r *Registry) List() []*Index {
	r.mu.RLock()
	out := make([]*Index, 0, len(r.indexes))
	for _, ix := range r.indexes {
		out = append(out, ix)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Index) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Drop removes the named index; dropping a missing index is an error
// wrapping vector.ErrNotFound.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexes[name]; !ok {
		return fmt.Errorf("vec: index %q: %w", name, vector.ErrNotFound)
	}
	delete(r.indexes, name)
	return nil
}
