package call

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/media"
	"github.com/sonara-ai/sonara/internal/observe"
)

// Publisher is the notifier seam. *event.Notifier satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// TokenIssuer mints the caller's room credential at call creation.
// *media.TokenMinter satisfies it.
type TokenIssuer interface {
	CallerToken(callID string) (string, error)
}

// Service is the call lifecycle manager. All writes to Call records go
// through it; transitions publish their domain events through the
// notifier and nothing else.
type Service struct {
	store   Store
	events  Publisher
	tokens  TokenIssuer
	metrics *observe.Metrics
	now     func() time.Time
}

// ServiceOption is a functional option for configuring a Service.
type ServiceOption func(*Service)

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService wires the lifecycle manager.
func NewService(store Store, events Publisher, tokens TokenIssuer, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		events:  events,
		tokens:  tokens,
		metrics: observe.DefaultMetrics(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create allocates a new call in CREATED, its media room, and a caller
// credential scoped to that room.
func (s *Service) Create(ctx context.Context, source string) (*Call, string, error) {
	id := uuid.NewString()
	now := s.now()

	c := &Call{
		ID:        id,
		RoomName:  media.RoomName(id),
		Source:    source,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, "", fmt.Errorf("call: create: %w", err)
	}

	token, err := s.tokens.CallerToken(id)
	if err != nil {
		return nil, "", fmt.Errorf("call: mint caller token: %w", err)
	}

	slog.Info("call created", "callId", id, "room", c.RoomName, "source", source)
	return c, token, nil
}

// Start transitions the call to ACTIVE and emits call_active.
func (s *Service) Start(ctx context.Context, id string) (*Call, error) {
	c, err := s.store.Transition(ctx, id, StatusActive, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCallTransition(ctx, string(StatusCreated), string(StatusActive))
	s.metrics.ActiveCalls.Add(ctx, 1)

	s.events.Publish(ctx, event.Event{
		Kind:   event.CallActive,
		CallID: c.ID,
		Payload: map[string]any{
			"callId": c.ID,
			"roomId": c.RoomName,
		},
	})
	slog.Info("call active", "callId", c.ID, "room", c.RoomName)
	return c, nil
}

// End transitions the call to ENDED and emits call_ended. Safe to race:
// the store's atomic check-and-apply lets exactly one caller win; the
// rest get ErrInvalidTransition.
func (s *Service) End(ctx context.Context, id string) (*Call, error) {
	c, err := s.store.Transition(ctx, id, StatusEnded, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCallTransition(ctx, string(endedFrom(c)), string(StatusEnded))
	if c.StartedAt != nil {
		s.metrics.ActiveCalls.Add(ctx, -1)
	}

	s.events.Publish(ctx, event.Event{
		Kind:    event.CallEnded,
		CallID:  c.ID,
		Payload: map[string]any{"callId": c.ID},
	})
	slog.Info("call ended", "callId", c.ID)
	return c, nil
}

// Handoff transitions the call to HANDED_OFF. The handoff coordinator
// drives this; the coordinator also emits handoff_completed after the
// snapshot is assembled, so no event fires here.
func (s *Service) Handoff(ctx context.Context, id string) (*Call, error) {
	c, err := s.store.Transition(ctx, id, StatusHandedOff, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCallTransition(ctx, string(StatusActive), string(StatusHandedOff))
	return c, nil
}

// endedFrom infers the status an ended call left, from its transition
// timestamps.
func endedFrom(c *Call) Status {
	switch {
	case c.HandedOffAt != nil:
		return StatusHandedOff
	case c.StartedAt != nil:
		return StatusActive
	default:
		return StatusCreated
	}
}

// Get returns a single call.
func (s *Service) Get(ctx context.Context, id string) (*Call, error) {
	return s.store.Get(ctx, id)
}

// List returns calls most-recent-first, bounded by the store page limit.
func (s *Service) List(ctx context.Context, f Filter) ([]*Call, error) {
	return s.store.List(ctx, f)
}

// UpdateContext overwrites the rolling summary and entities. Rejected
// once the call has ended. Event emission for summary changes belongs to
// the context service, not here.
func (s *Service) UpdateContext(ctx context.Context, id, summary string, entities map[string][]string) (*Call, error) {
	return s.store.UpdateContext(ctx, id, summary, entities)
}
