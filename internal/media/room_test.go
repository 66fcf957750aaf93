package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/sonara-ai/sonara/pkg/audio"
)

// gatewayStub accepts one WebSocket join and scripts the room's side of
// the conversation.
type gatewayStub struct {
	t          *testing.T
	authHeader chan string
	received   chan []byte
	sendFrames [][]byte
}

func newGatewayStub(t *testing.T, sendFrames [][]byte) (*gatewayStub, *httptest.Server) {
	g := &gatewayStub{
		t:          t,
		authHeader: make(chan string, 1),
		received:   make(chan []byte, 8),
		sendFrames: sendFrames,
	}
	srv := httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *gatewayStub) handle(w http.ResponseWriter, r *http.Request) {
	g.authHeader <- r.Header.Get("Authorization")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.t.Errorf("accept: %v", err)
		return
	}
	ctx := r.Context()

	// Housekeeping text first; clients must skip it.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"event":"joined"}`)); err != nil {
		g.t.Errorf("write text: %v", err)
		return
	}
	for _, f := range g.sendFrames {
		if err := conn.Write(ctx, websocket.MessageBinary, f); err != nil {
			g.t.Errorf("write frame: %v", err)
			return
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		g.received <- data
	}
}

func wsBaseURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestRoomClient(t *testing.T, srv *httptest.Server) *RoomClient {
	t.Helper()
	minter, err := NewTokenMinter("devkey", "devsecret-devsecret-devsecret")
	if err != nil {
		t.Fatalf("NewTokenMinter: %v", err)
	}
	c, err := NewRoomClient(wsBaseURL(srv), minter)
	if err != nil {
		t.Fatalf("NewRoomClient: %v", err)
	}
	return c
}

func TestRoomClient_JoinReadsAndWritesAudio(t *testing.T) {
	frame1 := make([]byte, 960)
	frame2 := make([]byte, 960)
	frame2[0] = 0x7f
	g, srv := newGatewayStub(t, [][]byte{frame1, frame2})

	c := newTestRoomClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, out, leave, err := c.Join(ctx, "call-1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	defer leave()

	if auth := <-g.authHeader; !strings.HasPrefix(auth, "Bearer eyJ") {
		t.Errorf("Authorization = %q, want a Bearer JWT", auth)
	}

	got1, err := in.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got1.SampleRate != 48000 || got1.Channels != 1 {
		t.Errorf("frame format = %d Hz / %d ch, want 48000 / 1", got1.SampleRate, got1.Channels)
	}
	if got1.Timestamp != 0 {
		t.Errorf("first frame timestamp = %v, want 0", got1.Timestamp)
	}

	got2, err := in.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got2.Data[0] != 0x7f {
		t.Error("second frame payload mismatch")
	}
	if want := 10 * time.Millisecond; got2.Timestamp != want {
		t.Errorf("second frame timestamp = %v, want %v", got2.Timestamp, want)
	}

	reply := audio.Frame{Data: make([]byte, 320), SampleRate: 16000, Channels: 1}
	if err := out.WriteFrame(ctx, reply); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	select {
	case data := <-g.received:
		if len(data) != 320 {
			t.Errorf("gateway received %d bytes, want 320", len(data))
		}
	case <-ctx.Done():
		t.Fatal("gateway never received the agent frame")
	}
}

func TestRoomClient_NextAfterLeave(t *testing.T) {
	_, srv := newGatewayStub(t, nil)
	c := newTestRoomClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in, _, leave, err := c.Join(ctx, "call-2")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := leave(); err != nil {
		t.Errorf("leave: %v", err)
	}
	if err := leave(); err != nil {
		t.Errorf("second leave: %v", err)
	}

	if _, err := in.Next(ctx); !errors.Is(err, io.EOF) && err == nil {
		t.Errorf("Next after leave = %v, want an error", err)
	}
}

func TestRoomClient_Validation(t *testing.T) {
	minter, _ := NewTokenMinter("k", "s")

	if _, err := NewRoomClient("", minter); err == nil {
		t.Error("NewRoomClient accepted an empty base URL")
	}
	if _, err := NewRoomClient("wss://media.example.com", nil); err == nil {
		t.Error("NewRoomClient accepted a nil token minter")
	}
}

func TestRoomClient_DialFailure(t *testing.T) {
	minter, _ := NewTokenMinter("k", "s")
	c, err := NewRoomClient("ws://127.0.0.1:1", minter)
	if err != nil {
		t.Fatalf("NewRoomClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, _, err := c.Join(ctx, "call-3"); err == nil {
		t.Error("Join against a closed port succeeded")
	}
}
