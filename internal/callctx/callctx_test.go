package callctx

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/transcript"
)

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string][]string
	}{
		{
			name: "phone number",
			text: "my number is 9876543210 thanks",
			want: map[string][]string{"phone_numbers": {"9876543210"}},
		},
		{
			name: "booking id",
			text: "booking BK123456 has a problem",
			want: map[string][]string{"booking_ids": {"BK123456"}},
		},
		{
			name: "both with duplicate phone",
			text: "call 9876543210 or 9876543210 about ABC1234567",
			want: map[string][]string{
				"phone_numbers": {"9876543210"},
				"booking_ids":   {"ABC1234567"},
			},
		},
		{
			name: "too short digits ignored",
			text: "code 12345 and ref A123456",
			want: map[string][]string{},
		},
		{
			name: "nothing",
			text: "hello there",
			want: map[string][]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEntities(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractEntities(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	caller := func(text string) *transcript.Turn {
		return &transcript.Turn{Speaker: transcript.SpeakerCaller, Text: text}
	}
	agent := func(text string) *transcript.Turn {
		return &transcript.Turn{Speaker: transcript.SpeakerAgent, Text: text}
	}

	tests := []struct {
		name  string
		turns []*transcript.Turn
		want  string
	}{
		{
			name:  "no turns",
			turns: nil,
			want:  "general inquiry",
		},
		{
			name:  "booking topic",
			turns: []*transcript.Turn{caller("I want to cancel my booking")},
			want:  "Caller discussing: booking issue",
		},
		{
			name: "multiple topics",
			turns: []*transcript.Turn{
				caller("where is my refund"),
				caller("I need help with this"),
			},
			want: "Caller discussing: payment concern, needs assistance",
		},
		{
			name:  "agent keywords ignored",
			turns: []*transcript.Turn{agent("I can help with your booking")},
			want:  "general inquiry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarize(tt.turns); got != tt.want {
				t.Errorf("summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}

// harness wires the context service over in-memory stores with a real
// notifier so emitted events can be observed.
type harness struct {
	svc      *Service
	calls    *call.Service
	turns    *transcript.Service
	notifier *event.Notifier
	dedup    *event.MemoryDedup
}

type noTokens struct{}

func (noTokens) CallerToken(string) (string, error) { return "t", nil }

func newHarness(t *testing.T) *harness {
	t.Helper()
	dedup := event.NewMemoryDedup()
	notifier := event.NewNotifier(dedup)
	callStore := call.NewMemStore()
	calls := call.NewService(callStore, notifier, noTokens{})
	turnStore := transcript.NewMemStore()
	turns := transcript.NewService(turnStore, calls)
	return &harness{
		svc:      NewService(calls, turns, notifier),
		calls:    calls,
		turns:    turns,
		notifier: notifier,
		dedup:    dedup,
	}
}

func (h *harness) activeCall(t *testing.T) *call.Call {
	t.Helper()
	ctx := context.Background()
	c, _, err := h.calls.Create(ctx, "web_widget")
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if _, err := h.calls.Start(ctx, c.ID); err != nil {
		t.Fatalf("start call: %v", err)
	}
	return c
}

func (h *harness) appendCaller(t *testing.T, callID, text string) {
	t.Helper()
	_, err := h.turns.Append(context.Background(), &transcript.Turn{
		CallID:     callID,
		Speaker:    transcript.SpeakerCaller,
		Text:       text,
		Confidence: 1,
	})
	if err != nil {
		t.Fatalf("append turn: %v", err)
	}
}

func TestService_UpdateSummaryPersistsAndEmits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.activeCall(t)

	var updated []event.Event
	h.notifier.Subscribe(event.ContextUpdated, func(_ context.Context, ev event.Event) error {
		updated = append(updated, ev)
		return nil
	})

	h.appendCaller(t, c.ID, "my booking BK123456 has a payment problem, call 9876543210")

	summary, err := h.svc.UpdateSummary(ctx, c.ID)
	if err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}
	if summary != "Caller discussing: booking issue, payment concern, needs assistance" {
		t.Errorf("summary = %q", summary)
	}

	stored, err := h.calls.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Summary != summary {
		t.Errorf("persisted summary = %q", stored.Summary)
	}
	if got := stored.Entities["booking_ids"]; len(got) != 1 || got[0] != "BK123456" {
		t.Errorf("booking_ids = %v", got)
	}
	if got := stored.Entities["phone_numbers"]; len(got) != 1 || got[0] != "9876543210" {
		t.Errorf("phone_numbers = %v", got)
	}

	h.notifier.Wait()
	if len(updated) != 1 {
		t.Fatalf("context_updated events = %d, want 1", len(updated))
	}
	if updated[0].Payload["summary"] != summary {
		t.Errorf("event payload summary = %v", updated[0].Payload["summary"])
	}
}

func TestService_SnapshotComputesMissingSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.activeCall(t)
	h.appendCaller(t, c.ID, "I need a refund")
	h.appendCaller(t, c.ID, "please hurry")

	snap, err := h.svc.Snapshot(ctx, c.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CallID != c.ID || snap.RoomName != c.RoomName || snap.Source != "web_widget" {
		t.Errorf("snapshot header = %+v", snap)
	}
	if snap.Summary != "Caller discussing: payment concern" {
		t.Errorf("summary = %q", snap.Summary)
	}
	if len(snap.RecentTurns) != 2 {
		t.Fatalf("recentTurns len = %d, want 2", len(snap.RecentTurns))
	}
	if snap.RecentTurns[1].Text != "please hurry" {
		t.Errorf("last turn = %q", snap.RecentTurns[1].Text)
	}
	if snap.At.IsZero() {
		t.Error("snapshot timestamp missing")
	}
}

func TestService_SnapshotBoundsRecentTurns(t *testing.T) {
	h := newHarness(t)
	c := h.activeCall(t)
	for i := 0; i < snapshotTurns+5; i++ {
		h.appendCaller(t, c.ID, "turn about nothing in particular")
	}

	snap, err := h.svc.Snapshot(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.RecentTurns) != snapshotTurns {
		t.Errorf("recentTurns len = %d, want %d", len(snap.RecentTurns), snapshotTurns)
	}
}

func TestService_GetProjection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.activeCall(t)
	h.appendCaller(t, c.ID, "hello")

	started, _ := h.calls.Get(ctx, c.ID)
	h.svc.now = func() time.Time { return started.StartedAt.Add(90 * time.Second) }

	proj, err := h.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if proj.Status != call.StatusActive {
		t.Errorf("status = %s", proj.Status)
	}
	if proj.TurnCount != 1 {
		t.Errorf("turnCount = %d", proj.TurnCount)
	}
	if proj.DurationSeconds != 90 {
		t.Errorf("duration = %v, want 90", proj.DurationSeconds)
	}
}

func TestService_GetUnknownCall(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.Get(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown call")
	}
}
