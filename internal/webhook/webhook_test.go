package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/media"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTokens struct{}

func (stubTokens) CallerToken(callID string) (string, error) { return "token-" + callID, nil }

func newFixture(t *testing.T) (*gin.Engine, *call.Service, *event.Notifier) {
	t.Helper()

	notifier := event.NewNotifier(event.NewMemoryDedup())
	calls := call.NewService(call.NewMemStore(), notifier, stubTokens{})

	r := gin.New()
	New(calls).Routes(r)
	t.Cleanup(notifier.Wait)
	return r, calls, notifier
}

func deliver(t *testing.T, r *gin.Engine, ev media.WebhookEvent) (int, map[string]any) {
	t.Helper()

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/media", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec.Code, body
}

func joinedEvent(callID, identity string) media.WebhookEvent {
	return media.WebhookEvent{
		Event: media.EventParticipantJoined,
		Room: media.Room{
			Name:     media.RoomName(callID),
			Metadata: media.EncodeRoomMetadata(callID),
		},
		Participant: media.Participant{Identity: identity},
	}
}

func TestCallerJoinActivatesCall(t *testing.T) {
	r, calls, _ := newFixture(t)
	ctx := context.Background()
	created, _, err := calls.Create(ctx, "web_widget")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	code, body := deliver(t, r, joinedEvent(created.ID, media.CallerIdentity(created.ID)))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d", code, http.StatusOK)
	}
	if body["status"] != "processed" {
		t.Errorf("status = %v, want processed", body["status"])
	}

	got, err := calls.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != call.StatusActive {
		t.Errorf("call status = %v, want %v", got.Status, call.StatusActive)
	}
}

func TestCallerLeaveEndsCall(t *testing.T) {
	r, calls, _ := newFixture(t)
	ctx := context.Background()
	created, _, _ := calls.Create(ctx, "web_widget")
	if _, err := calls.Start(ctx, created.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ev := joinedEvent(created.ID, media.CallerIdentity(created.ID))
	ev.Event = media.EventParticipantLeft
	code, body := deliver(t, r, ev)
	if code != http.StatusOK || body["status"] != "processed" {
		t.Fatalf("code = %d, body = %v", code, body)
	}

	got, _ := calls.Get(ctx, created.ID)
	if got.Status != call.StatusEnded {
		t.Errorf("call status = %v, want %v", got.Status, call.StatusEnded)
	}
}

func TestAgentJoinIgnored(t *testing.T) {
	r, calls, _ := newFixture(t)
	ctx := context.Background()
	created, _, _ := calls.Create(ctx, "web_widget")

	code, body := deliver(t, r, joinedEvent(created.ID, media.AgentIdentity(created.ID)))
	if code != http.StatusOK || body["status"] != "ignored" {
		t.Fatalf("code = %d, body = %v", code, body)
	}

	got, _ := calls.Get(ctx, created.ID)
	if got.Status != call.StatusCreated {
		t.Errorf("call status = %v, want %v", got.Status, call.StatusCreated)
	}
}

func TestForeignRoomIgnored(t *testing.T) {
	r, _, _ := newFixture(t)

	ev := media.WebhookEvent{
		Event:       media.EventParticipantJoined,
		Room:        media.Room{Name: "someone-elses-room", Metadata: `{"tenant":"other"}`},
		Participant: media.Participant{Identity: "caller_x"},
	}
	code, body := deliver(t, r, ev)
	if code != http.StatusOK || body["status"] != "ignored" {
		t.Fatalf("code = %d, body = %v", code, body)
	}
}

func TestRedeliveryAcknowledged(t *testing.T) {
	r, calls, _ := newFixture(t)
	ctx := context.Background()
	created, _, _ := calls.Create(ctx, "web_widget")

	ev := joinedEvent(created.ID, media.CallerIdentity(created.ID))
	if code, _ := deliver(t, r, ev); code != http.StatusOK {
		t.Fatalf("first delivery status = %d", code)
	}
	code, body := deliver(t, r, ev)
	if code != http.StatusOK {
		t.Fatalf("redelivery status = %d, want %d", code, http.StatusOK)
	}
	if body["status"] != "already_applied" {
		t.Errorf("status = %v, want already_applied", body["status"])
	}

	got, _ := calls.Get(ctx, created.ID)
	if got.Status != call.StatusActive {
		t.Errorf("call status = %v, want %v", got.Status, call.StatusActive)
	}
}

func TestUnknownCallAcknowledged(t *testing.T) {
	r, _, _ := newFixture(t)

	code, body := deliver(t, r, joinedEvent("ghost", media.CallerIdentity("ghost")))
	if code != http.StatusOK || body["status"] != "ignored" {
		t.Fatalf("code = %d, body = %v", code, body)
	}
}

func TestTrackEventNoted(t *testing.T) {
	r, calls, _ := newFixture(t)
	created, _, _ := calls.Create(context.Background(), "web_widget")

	ev := media.WebhookEvent{
		Event: media.EventTrackPublished,
		Room: media.Room{
			Name:     media.RoomName(created.ID),
			Metadata: media.EncodeRoomMetadata(created.ID),
		},
		Participant: media.Participant{Identity: media.CallerIdentity(created.ID)},
		Track:       media.Track{SID: "TR_abc", Type: "audio"},
	}
	code, body := deliver(t, r, ev)
	if code != http.StatusOK || body["status"] != "noted" {
		t.Fatalf("code = %d, body = %v", code, body)
	}
}

func TestMalformedBody(t *testing.T) {
	r, _, _ := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/media", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
