// Package agentctl bridges domain events to the agent runtime: the
// call_active event starts a pipeline, call_ended and handoff_completed
// stop it. Requests are fire-and-forget; a failed notification is
// logged and never propagated back into the publishing transition.
package agentctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/media"
)

const defaultTimeout = 10 * time.Second

// TokenIssuer mints the agent's room credential carried in start
// requests. *media.TokenMinter satisfies it.
type TokenIssuer interface {
	AgentToken(callID string) (string, error)
}

// Client talks to the agent runtime's HTTP surface.
type Client struct {
	baseURL string
	tokens  TokenIssuer
	httpc   *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// NewClient creates a client for the agent runtime at baseURL. tokens
// may be nil, in which case start requests carry no credential and the
// runtime mints its own.
func NewClient(baseURL string, tokens TokenIssuer, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start asks the runtime to start a pipeline for the call, carrying the
// call's room name and an agent credential so an external runtime needs
// no signing key of its own.
func (c *Client) Start(ctx context.Context, callID string) error {
	payload := map[string]string{
		"callId":   callID,
		"roomName": media.RoomName(callID),
	}
	if c.tokens != nil {
		token, err := c.tokens.AgentToken(callID)
		if err != nil {
			return fmt.Errorf("agentctl: mint agent token: %w", err)
		}
		payload["token"] = token
	}
	return c.post(ctx, "/agent/start", payload)
}

// Stop asks the runtime to stop the call's pipeline.
func (c *Client) Stop(ctx context.Context, callID string) error {
	return c.post(ctx, "/agent/stop", map[string]string{"callId": callID})
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("agentctl: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("agentctl: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("agentctl: %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agentctl: %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// Subscriber is the notifier-facing seam. *event.Notifier satisfies it.
type Subscriber interface {
	Subscribe(kind event.Kind, h event.Handler)
}

// Register subscribes the agent start/stop side effects. Failures are
// logged and swallowed: delivery is best-effort, the runtime's receiver
// side is idempotent, and there is no retry or reconciliation loop.
func Register(n Subscriber, client *Client) {
	n.Subscribe(event.CallActive, func(ctx context.Context, ev event.Event) error {
		if err := client.Start(ctx, ev.CallID); err != nil {
			slog.Error("agent start notification failed", "callId", ev.CallID, "error", err)
		}
		return nil
	})

	stop := func(ctx context.Context, ev event.Event) error {
		if err := client.Stop(ctx, ev.CallID); err != nil {
			slog.Error("agent stop notification failed", "callId", ev.CallID, "kind", ev.Kind, "error", err)
		}
		return nil
	}
	n.Subscribe(event.CallEnded, stop)
	n.Subscribe(event.HandoffCompleted, stop)
}
