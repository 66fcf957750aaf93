package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sonara-ai/sonara/internal/call"
)

// CallReader is the slice of the call store the ledger needs to enforce
// "no turn after ENDED". *call.Service satisfies it.
type CallReader interface {
	Get(ctx context.Context, id string) (*call.Call, error)
}

// Service validates and appends turns, guarding the append-only ledger
// with the owning call's lifecycle state.
type Service struct {
	store Store
	calls CallReader
	now   func() time.Time
}

// NewService wires the turn ledger service.
func NewService(store Store, calls CallReader) *Service {
	return &Service{store: store, calls: calls, now: time.Now}
}

// Append validates t, checks the owning call is not ENDED, stamps id and
// creation time, and persists the turn. The ledger is never touched when
// validation or the lifecycle check fails.
func (s *Service) Append(ctx context.Context, t *Turn) (*Turn, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}

	c, err := s.calls.Get(ctx, t.CallID)
	if err != nil {
		return nil, err
	}
	if c.Status == call.StatusEnded {
		return nil, fmt.Errorf("%w: cannot append turn", call.ErrCallEnded)
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Language == "" {
		t.Language = "unknown"
	}

	if err := s.store.Append(ctx, t); err != nil {
		return nil, fmt.Errorf("transcript: append: %w", err)
	}
	return t, nil
}

// History returns the full turn history for a call, oldest-first.
func (s *Service) History(ctx context.Context, callID string) ([]*Turn, error) {
	if _, err := s.calls.Get(ctx, callID); err != nil {
		return nil, err
	}
	return s.store.ListByCall(ctx, callID)
}

// Recent returns up to limit of the newest turns, oldest-first.
func (s *Service) Recent(ctx context.Context, callID string, limit int) ([]*Turn, error) {
	return s.store.Recent(ctx, callID, limit)
}

// Count reports the call's turn total.
func (s *Service) Count(ctx context.Context, callID string) (int, error) {
	return s.store.Count(ctx, callID)
}
