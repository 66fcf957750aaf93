// Package callctx derives conversational context from the turn ledger:
// rolling summaries, extracted entities, handoff snapshots, and the
// read-only call context projection.
package callctx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/transcript"
)

const (
	// summaryWindow bounds how many recent turns feed summary derivation.
	summaryWindow = 20
	// snapshotTurns bounds how many recent turns ride along in a handoff
	// snapshot.
	snapshotTurns = 10
)

// Calls is the slice of the lifecycle manager the context service needs.
// *call.Service satisfies it.
type Calls interface {
	Get(ctx context.Context, id string) (*call.Call, error)
	UpdateContext(ctx context.Context, id, summary string, entities map[string][]string) (*call.Call, error)
}

// Turns is the ledger read surface. *transcript.Service satisfies it.
type Turns interface {
	Recent(ctx context.Context, callID string, limit int) ([]*transcript.Turn, error)
	Count(ctx context.Context, callID string) (int, error)
}

// Publisher is the notifier seam. *event.Notifier satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// TurnView is the trimmed turn shape carried inside a snapshot.
type TurnView struct {
	Speaker  transcript.Speaker `json:"speaker"`
	Text     string             `json:"text"`
	Language string             `json:"language"`
}

// Snapshot is the point-in-time context bundle handed to a human agent.
// Built on demand and never mutated afterwards.
type Snapshot struct {
	CallID      string              `json:"callId"`
	RoomName    string              `json:"roomId"`
	Source      string              `json:"source"`
	Summary     string              `json:"summary"`
	Entities    map[string][]string `json:"entities"`
	RecentTurns []TurnView          `json:"recentTurns"`
	At          time.Time           `json:"at"`
}

// Projection is the read-only context view served over the API.
type Projection struct {
	CallID          string      `json:"callId"`
	Status          call.Status `json:"status"`
	Summary         string      `json:"summary"`
	TurnCount       int         `json:"turnCount"`
	DurationSeconds float64     `json:"durationSeconds"`
}

// Service assembles context from calls and turns.
type Service struct {
	calls  Calls
	turns  Turns
	events Publisher
	now    func() time.Time
}

// NewService wires the context service.
func NewService(calls Calls, turns Turns, events Publisher) *Service {
	return &Service{calls: calls, turns: turns, events: events, now: time.Now}
}

// UpdateSummary derives a topic summary and entity map from the most
// recent turns, persists them on the call, and emits context_updated.
func (s *Service) UpdateSummary(ctx context.Context, callID string) (string, error) {
	turns, err := s.turns.Recent(ctx, callID, summaryWindow)
	if err != nil {
		return "", fmt.Errorf("callctx: read recent turns: %w", err)
	}

	summary := summarize(turns)
	entities := make(map[string][]string)
	for _, t := range turns {
		entities = mergeEntities(entities, ExtractEntities(t.Text))
	}
	if len(entities) == 0 {
		entities = nil
	}

	if _, err := s.calls.UpdateContext(ctx, callID, summary, entities); err != nil {
		return "", err
	}

	s.events.Publish(ctx, event.Event{
		Kind:   event.ContextUpdated,
		CallID: callID,
		Payload: map[string]any{
			"callId":  callID,
			"summary": summary,
		},
	})
	slog.Debug("context summary updated", "callId", callID, "summary", summary)
	return summary, nil
}

// Snapshot assembles the handoff context bundle. A call without a
// summary gets one computed synchronously first.
func (s *Service) Snapshot(ctx context.Context, callID string) (*Snapshot, error) {
	c, err := s.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}

	summary := c.Summary
	entities := c.Entities
	if summary == "" {
		if summary, err = s.UpdateSummary(ctx, callID); err != nil {
			return nil, err
		}
		if refreshed, err := s.calls.Get(ctx, callID); err == nil {
			entities = refreshed.Entities
		}
	}

	turns, err := s.turns.Recent(ctx, callID, snapshotTurns)
	if err != nil {
		return nil, fmt.Errorf("callctx: read recent turns: %w", err)
	}
	views := make([]TurnView, len(turns))
	for i, t := range turns {
		views[i] = TurnView{Speaker: t.Speaker, Text: t.Text, Language: t.Language}
	}

	return &Snapshot{
		CallID:      c.ID,
		RoomName:    c.RoomName,
		Source:      c.Source,
		Summary:     summary,
		Entities:    entities,
		RecentTurns: views,
		At:          s.now(),
	}, nil
}

// Get returns the read-only context projection. Duration runs from
// startedAt to endedAt, or to now for a live call.
func (s *Service) Get(ctx context.Context, callID string) (*Projection, error) {
	c, err := s.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	count, err := s.turns.Count(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("callctx: count turns: %w", err)
	}

	return &Projection{
		CallID:          c.ID,
		Status:          c.Status,
		Summary:         c.Summary,
		TurnCount:       count,
		DurationSeconds: c.Duration(s.now()).Seconds(),
	}, nil
}

// summarize maps keyword hits over the window to a short topic line.
// Intentionally rule-based; an LLM-backed summarizer can replace it
// behind the same method without touching callers.
func summarize(turns []*transcript.Turn) string {
	var text strings.Builder
	for _, t := range turns {
		if t.Speaker != transcript.SpeakerCaller {
			continue
		}
		text.WriteString(strings.ToLower(t.Text))
		text.WriteByte(' ')
	}
	lowered := text.String()

	var topics []string
	if strings.Contains(lowered, "booking") || strings.Contains(lowered, "cancel") {
		topics = append(topics, "booking issue")
	}
	if strings.Contains(lowered, "payment") || strings.Contains(lowered, "refund") {
		topics = append(topics, "payment concern")
	}
	if strings.Contains(lowered, "help") || strings.Contains(lowered, "problem") {
		topics = append(topics, "needs assistance")
	}
	if len(topics) == 0 {
		return "general inquiry"
	}
	return "Caller discussing: " + strings.Join(topics, ", ")
}
