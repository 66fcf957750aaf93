package transcript

import (
	"context"
	"sync"
)

// Store is the append-only turn ledger. Implementations never expose
// update or delete.
type Store interface {
	// Append persists a validated turn.
	Append(ctx context.Context, t *Turn) error

	// ListByCall returns the call's turns oldest-first.
	ListByCall(ctx context.Context, callID string) ([]*Turn, error)

	// Recent returns up to limit of the call's newest turns, oldest-first
	// within the window.
	Recent(ctx context.Context, callID string, limit int) ([]*Turn, error)

	// Count reports how many turns the call has accumulated.
	Count(ctx context.Context, callID string) (int, error)
}

// MemStore is a mutex-guarded in-memory ledger.
type MemStore struct {
	mu    sync.RWMutex
	turns map[string][]*Turn
}

// NewMemStore creates an empty in-memory ledger.
func NewMemStore() *MemStore {
	return &MemStore{turns: make(map[string][]*Turn)}
}

// Append implements Store.
func (s *MemStore) Append(_ context.Context, t *Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.turns[t.CallID] = append(s.turns[t.CallID], &cp)
	return nil
}

// ListByCall implements Store.
func (s *MemStore) ListByCall(_ context.Context, callID string) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTurns(s.turns[callID]), nil
}

// Recent implements Store.
func (s *MemStore) Recent(_ context.Context, callID string, limit int) ([]*Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[callID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return copyTurns(all), nil
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context, callID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[callID]), nil
}

func copyTurns(in []*Turn) []*Turn {
	out := make([]*Turn, len(in))
	for i, t := range in {
		cp := *t
		out[i] = &cp
	}
	return out
}

var _ Store = (*MemStore)(nil)
