package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sonara-ai/sonara/pkg/audio"
)

// roomSampleRate is the PCM rate the transport's audio gateway delivers
// and accepts. The pipeline resamples to its own rate as needed.
const roomSampleRate = 48000

// RoomClient is the data-plane connection to the media transport's audio
// gateway. Each Join dials one WebSocket per call: binary messages from
// the gateway carry the room's mixed caller audio, binary messages sent
// to it are played into the room as the agent's voice.
type RoomClient struct {
	baseURL string
	tokens  *TokenMinter
}

// NewRoomClient creates a client for the gateway at baseURL
// (e.g., "wss://media.example.com").
func NewRoomClient(baseURL string, tokens *TokenMinter) (*RoomClient, error) {
	if baseURL == "" {
		return nil, errors.New("media: gateway base URL is required")
	}
	if tokens == nil {
		return nil, errors.New("media: token minter is required")
	}
	return &RoomClient{baseURL: strings.TrimRight(baseURL, "/"), tokens: tokens}, nil
}

// Join connects to a call's room as the automated agent, deriving the
// room name and minting the agent credential locally. The returned
// leave func closes the connection; after leave, the input stream's Next
// returns io.EOF.
func (c *RoomClient) Join(ctx context.Context, callID string) (InputStream, OutputSource, func() error, error) {
	return c.JoinRoom(ctx, callID, "", "")
}

// JoinRoom connects with an explicit room name and credential, as
// carried in the orchestrator's start request. Empty values fall back
// to the call's derived room and a locally minted agent token.
func (c *RoomClient) JoinRoom(ctx context.Context, callID, roomName, token string) (InputStream, OutputSource, func() error, error) {
	if roomName == "" {
		roomName = RoomName(callID)
	}
	if token == "" {
		minted, err := c.tokens.AgentToken(callID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("media: mint agent token: %w", err)
		}
		token = minted
	}

	wsURL, err := url.JoinPath(c.baseURL, "rooms", roomName, "join")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("media: build gateway URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("media: dial gateway: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	sess := &roomSession{conn: conn}
	leave := func() error {
		return sess.close()
	}
	return &roomInput{sess: sess}, &roomOutput{sess: sess}, leave, nil
}

// roomSession owns the shared WebSocket. Reads and writes come from
// different goroutines; coder/websocket allows one concurrent reader and
// one concurrent writer, which matches the pipeline's usage.
type roomSession struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

func (s *roomSession) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close(websocket.StatusNormalClosure, "leaving room")
	})
	return s.closeErr
}

// roomInput reads the room's caller audio.
type roomInput struct {
	sess   *roomSession
	offset time.Duration
}

func (in *roomInput) Next(ctx context.Context) (audio.Frame, error) {
	for {
		typ, data, err := in.sess.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return audio.Frame{}, ctx.Err()
			}
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, io.EOF) {
				return audio.Frame{}, io.EOF
			}
			return audio.Frame{}, fmt.Errorf("media: read room audio: %w", err)
		}
		// Text messages are gateway housekeeping and carry no audio.
		if typ != websocket.MessageBinary || len(data) == 0 {
			continue
		}

		frame := audio.Frame{
			Data:       data,
			SampleRate: roomSampleRate,
			Channels:   1,
			Timestamp:  in.offset,
		}
		in.offset += time.Duration(len(data)/2) * time.Second / roomSampleRate
		return frame, nil
	}
}

// roomOutput publishes the agent's synthesized audio.
type roomOutput struct {
	sess *roomSession
}

func (out *roomOutput) WriteFrame(ctx context.Context, frame audio.Frame) error {
	if err := out.sess.conn.Write(ctx, websocket.MessageBinary, frame.Data); err != nil {
		return fmt.Errorf("media: write room audio: %w", err)
	}
	return nil
}
