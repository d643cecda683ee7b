package playback

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks the live bridges of a process, keyed by view id.
// Embedding hosts that manage several native player surfaces use it to
// route commands to the right bridge.
type Registry struct {
	mu      sync.RWMutex
	bridges map[string]*Bridge
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]*Bridge)}
}

// Register adds a bridge to the registry.
func (r *Registry) Register(b *Bridge) error {
	if b == nil {
		return fmt.Errorf("cannot register nil bridge")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bridges[b.ViewID()]; exists {
		return fmt.Errorf("bridge %s is already registered", b.ViewID())
	}
	r.bridges[b.ViewID()] = b
	return nil
}

// Get returns the bridge for a view id.
func (r *Registry) Get(viewID string) (*Bridge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bridges[viewID]
	if !ok {
		return nil, fmt.Errorf("no bridge registered for view %s", viewID)
	}
	return b, nil
}

// Remove drops a bridge from the registry without disposing it.
func (r *Registry) Remove(viewID string) {
	r.mu.Lock()
	delete(r.bridges, viewID)
	r.mu.Unlock()
}

// List returns the registered view ids in stable order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.bridges))
	for id := range r.bridges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered bridges.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bridges)
}

// DisposeAll disposes every registered bridge and empties the
// registry. The first disposal error is returned.
func (r *Registry) DisposeAll() error {
	r.mu.Lock()
	bridges := make([]*Bridge, 0, len(r.bridges))
	for _, b := range r.bridges {
		bridges = append(bridges, b)
	}
	r.bridges = make(map[string]*Bridge)
	r.mu.Unlock()

	var firstErr error
	for _, b := range bridges {
		if err := b.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
