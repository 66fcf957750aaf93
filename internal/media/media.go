// Package media defines the contract with the real-time media transport:
// room naming, room-scoped access tokens, audio stream endpoints, and the
// webhook event shapes the transport delivers. The transport itself
// (rooms, tracks, codecs) lives outside this system; everything here is
// the narrow seam the orchestration engine talks through.
package media

import (
	"context"

	"github.com/sonara-ai/sonara/pkg/audio"
)

// Participant identity prefixes inside a room.
const (
	CallerIdentityPrefix = "caller_"
	AgentIdentityPrefix  = "agent_"
	HumanIdentityPrefix  = "human_"
)

// RoomName returns the transport room allocated for a call.
func RoomName(callID string) string {
	return "call_" + callID
}

// CallerIdentity returns the room identity for the calling customer.
func CallerIdentity(callID string) string {
	return CallerIdentityPrefix + callID
}

// AgentIdentity returns the room identity for the automated agent.
func AgentIdentity(callID string) string {
	return AgentIdentityPrefix + callID
}

// HumanIdentity returns the room identity for a human agent joining on
// handoff.
func HumanIdentity(callID string) string {
	return HumanIdentityPrefix + callID
}

// InputStream is a readable sequence of captured audio frames, typically
// one participant's published track.
type InputStream interface {
	// Next blocks until the next frame is available. It returns io.EOF
	// when the track ends and ctx.Err() when the context is cancelled.
	Next(ctx context.Context) (audio.Frame, error)
}

// OutputSource accepts synthesized frames for playback into the room.
// Callers pace writes themselves; WriteFrame must not block longer than
// the transport needs to enqueue one frame.
type OutputSource interface {
	WriteFrame(ctx context.Context, frame audio.Frame) error
}
