package event

import (
	"context"
	"sync"
)

// MemoryDedup is the default in-process DedupStore. Marks are grouped per
// call so the map stays bounded by the number of live calls: the notifier
// evicts a call's group when the call ends.
type MemoryDedup struct {
	mu    sync.Mutex
	calls map[string]map[Kind]struct{}
}

// NewMemoryDedup creates an empty in-memory dedup store.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{calls: make(map[string]map[Kind]struct{})}
}

// MarkOnce implements DedupStore.
func (d *MemoryDedup) MarkOnce(_ context.Context, callID string, kind Kind) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kinds, ok := d.calls[callID]
	if !ok {
		kinds = make(map[Kind]struct{})
		d.calls[callID] = kinds
	}
	if _, seen := kinds[kind]; seen {
		return false, nil
	}
	kinds[kind] = struct{}{}
	return true, nil
}

// Evict implements DedupStore.
func (d *MemoryDedup) Evict(_ context.Context, callID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.calls, callID)
	return nil
}

// Len reports the number of calls currently tracked. Used by tests and
// the readiness probe.
func (d *MemoryDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

var _ DedupStore = (*MemoryDedup)(nil)
