package agentd

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned by Acquire when the call already owns a
// live pipeline.
var ErrAlreadyRunning = errors.New("agentd: pipeline already running for call")

// Registry tracks which calls own a live pipeline. Acquire and Release
// are atomic, so at most one pipeline can ever be bound to a call no
// matter how requests race.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Acquire binds value to callID. Fails with ErrAlreadyRunning if the
// call is already bound.
func (r *Registry[T]) Acquire(callID string, value T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[callID]; ok {
		return ErrAlreadyRunning
	}
	r.entries[callID] = value
	return nil
}

// Release unbinds callID and returns the bound value. The second return
// is false when nothing was bound.
func (r *Registry[T]) Release(callID string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.entries[callID]
	if ok {
		delete(r.entries, callID)
	}
	return value, ok
}

// Get returns the bound value without releasing it.
func (r *Registry[T]) Get(callID string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.entries[callID]
	return value, ok
}

// Len reports how many calls currently own a pipeline.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drain unbinds everything and returns the values, for shutdown.
func (r *Registry[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.entries))
	for _, v := range r.entries {
		out = append(out, v)
	}
	r.entries = make(map[string]T)
	return out
}
