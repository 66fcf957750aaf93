// Package handoff coordinates transfer of a live call from the
// automated agent to a human agent: advisory rule evaluation, the
// atomic lifecycle transition, the context snapshot, and the human
// agent's media credential.
package handoff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/callctx"
	"github.com/sonara-ai/sonara/internal/event"
	"github.com/sonara-ai/sonara/internal/transcript"
)

// evaluationWindow bounds how many recent turns rule evaluation reads.
const evaluationWindow = 10

// Lifecycle is the slice of the call manager the coordinator drives.
// *call.Service satisfies it.
type Lifecycle interface {
	Get(ctx context.Context, id string) (*call.Call, error)
	Handoff(ctx context.Context, id string) (*call.Call, error)
}

// Snapshotter assembles the context bundle. *callctx.Service satisfies
// it.
type Snapshotter interface {
	Snapshot(ctx context.Context, callID string) (*callctx.Snapshot, error)
}

// Turns is the ledger read surface for rule evaluation.
// *transcript.Service satisfies it.
type Turns interface {
	Recent(ctx context.Context, callID string, limit int) ([]*transcript.Turn, error)
}

// TokenIssuer mints the human agent's room credential.
// *media.TokenMinter satisfies it.
type TokenIssuer interface {
	HumanToken(callID string) (string, error)
}

// Publisher is the notifier seam. *event.Notifier satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// Result is what a completed handoff hands back to the API layer.
type Result struct {
	Snapshot    *callctx.Snapshot
	AccessToken string
	Evaluation  *Evaluation
}

// Coordinator runs the handoff protocol.
type Coordinator struct {
	calls   Lifecycle
	context Snapshotter
	turns   Turns
	tokens  TokenIssuer
	events  Publisher
}

// NewCoordinator wires the handoff coordinator.
func NewCoordinator(calls Lifecycle, contextSvc Snapshotter, turns Turns, tokens TokenIssuer, events Publisher) *Coordinator {
	return &Coordinator{
		calls:   calls,
		context: contextSvc,
		turns:   turns,
		tokens:  tokens,
		events:  events,
	}
}

// Evaluate inspects recent caller turns for frustration markers and
// returns an advisory recommendation. Nothing acts on the result
// automatically; a human or an API caller decides.
func (c *Coordinator) Evaluate(ctx context.Context, callID string) (Evaluation, error) {
	if _, err := c.calls.Get(ctx, callID); err != nil {
		return Evaluation{}, err
	}
	turns, err := c.turns.Recent(ctx, callID, evaluationWindow)
	if err != nil {
		return Evaluation{}, fmt.Errorf("handoff: read recent turns: %w", err)
	}

	var utterances []string
	for _, t := range turns {
		if t.Speaker == transcript.SpeakerCaller {
			utterances = append(utterances, t.Text)
		}
	}
	return evaluate(utterances), nil
}

// Request performs the handoff. Every fallible step runs before the
// lifecycle transition, so a failure anywhere leaves the call status
// untouched: evaluate, snapshot, and mint the credential first, then
// transition ACTIVE to HANDED_OFF, then emit handoff_completed. The
// notifier's subscribers stop the automated-agent pipeline in response
// to the event.
func (c *Coordinator) Request(ctx context.Context, callID string) (*Result, error) {
	eval, err := c.Evaluate(ctx, callID)
	if err != nil {
		return nil, err
	}

	snap, err := c.context.Snapshot(ctx, callID)
	if err != nil {
		return nil, fmt.Errorf("handoff: snapshot context: %w", err)
	}

	token, err := c.tokens.HumanToken(callID)
	if err != nil {
		return nil, fmt.Errorf("handoff: mint human token: %w", err)
	}

	if _, err := c.calls.Handoff(ctx, callID); err != nil {
		return nil, err
	}

	c.events.Publish(ctx, event.Event{
		Kind:    event.HandoffCompleted,
		CallID:  callID,
		Payload: map[string]any{"callId": callID},
	})
	slog.Info("handoff completed", "callId", callID, "recentTurns", len(snap.RecentTurns))

	return &Result{Snapshot: snap, AccessToken: token, Evaluation: &eval}, nil
}
