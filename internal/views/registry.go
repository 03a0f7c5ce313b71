package views

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry binds component names to views.
type Registry struct {
	mu    sync.RWMutex
	eager map[string]View
	lazy  map[string]*Lazy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		eager: make(map[string]View),
		lazy:  make(map[string]*Lazy),
	}
}

// Register binds an already loaded view.
func (r *Registry) Register(name string, v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lazy, name)
	r.eager[name] = v
}

// RegisterLazy binds a view that is loaded on first use.
func (r *Registry) RegisterLazy(name string, load LoadFunc) *Lazy {
	l := NewLazy(name, load)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.eager, name)
	r.lazy[name] = l
	return l
}

// Known reports whether a component is registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, eager := r.eager[name]
	_, lazy := r.lazy[name]
	return eager || lazy
}

// IsLazy reports whether a component is deferred.
func (r *Registry) IsLazy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lazy[name]
	return ok
}

// Lazy returns the deferred view registered under name.
func (r *Registry) Lazy(name string) (*Lazy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lazy[name]
	return l, ok
}

// Get returns the view for a component, loading it if deferred.
func (r *Registry) Get(ctx context.Context, name string) (View, error) {
	r.mu.RLock()
	v, eager := r.eager[name]
	l, lazy := r.lazy[name]
	r.mu.RUnlock()

	switch {
	case eager:
		return v, nil
	case lazy:
		return l.Get(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
}

// Names lists every registered component, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.eager)+len(r.lazy))
	for n := range r.eager {
		names = append(names, n)
	}
	for n := range r.lazy {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
