package call

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is a mutex-guarded in-memory Store. It is the default for
// single-node deployments and the workhorse of the test suite.
type MemStore struct {
	mu    sync.RWMutex
	calls map[string]*Call
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{calls: make(map[string]*Call)}
}

// Create implements Store.
func (s *MemStore) Create(_ context.Context, c *Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.ID] = c.Clone()
	return nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id string) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context, f Filter) ([]*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Call, 0, len(s.calls))
	for _, c := range s.calls {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Transition implements Store. The whole check-and-apply runs under the
// write lock so races between concurrent transitions are impossible.
func (s *MemStore) Transition(_ context.Context, id string, target Status, at time.Time) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !CanTransition(c.Status, target) {
		return nil, &TransitionError{From: c.Status, To: target}
	}

	c.Status = target
	c.UpdatedAt = at
	switch target {
	case StatusActive:
		c.StartedAt = &at
	case StatusHandedOff:
		c.HandedOffAt = &at
	case StatusEnded:
		c.EndedAt = &at
	}
	return c.Clone(), nil
}

// UpdateContext implements Store.
func (s *MemStore) UpdateContext(_ context.Context, id, summary string, entities map[string][]string) (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.Status == StatusEnded {
		return nil, ErrCallEnded
	}

	// Summary and entities are whole-window recomputations, so both
	// overwrite; nil clears entities that no longer appear.
	c.Summary = summary
	c.Entities = nil
	if len(entities) > 0 {
		c.Entities = make(map[string][]string, len(entities))
		for k, v := range entities {
			c.Entities[k] = append([]string(nil), v...)
		}
	}
	c.UpdatedAt = time.Now()
	return c.Clone(), nil
}

var _ Store = (*MemStore)(nil)
