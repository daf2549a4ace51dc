package idmap

import "sync"

// Registry holds per-session mappers, created on demand and dropped on
// session teardown.
type Registry struct {
	mu      sync.Mutex
	mappers map[string]*Mapper
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{mappers: make(map[string]*Mapper)}
}

// For returns the mapper for a session id, creating it if needed.
func (r *Registry) For(sessionID string) *Mapper {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappers[sessionID]
	if !ok {
		m = New()
		r.mappers[sessionID] = m
	}
	return m
}

// Release drops the mapper for a session id.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mappers, sessionID)
}

// Len returns the number of live mappers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mappers)
}

// DefaultRegistry is the process-wide mapper registry.
var DefaultRegistry = NewRegistry()
