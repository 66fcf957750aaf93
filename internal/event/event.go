// Package event implements the domain event notifier: a typed
// publish/subscribe registry that decouples call state transitions from
// their network side effects.
//
// Publication is idempotent per (call id, kind): under at-least-once
// delivery of the inbound webhooks that drive transitions, a duplicate
// publish for the same call and kind is silently dropped and never
// re-triggers subscribers. Subscriber failures and panics are caught and
// logged, never propagated to the publisher.
package event

import "time"

// Kind identifies a domain event. The set is closed; the notifier rejects
// kinds outside it so the dedup key space stays bounded and well-known.
type Kind string

const (
	// CallActive fires when a call transitions CREATED -> ACTIVE.
	CallActive Kind = "call_active"

	// CallEnded fires when a call reaches ENDED from any live state.
	CallEnded Kind = "call_ended"

	// ContextUpdated fires when the rolling summary is recomputed.
	ContextUpdated Kind = "context_updated"

	// HandoffCompleted fires when a call transitions ACTIVE -> HANDED_OFF.
	HandoffCompleted Kind = "handoff_completed"
)

// Known reports whether k belongs to the closed event kind set.
func Known(k Kind) bool {
	switch k {
	case CallActive, CallEnded, ContextUpdated, HandoffCompleted:
		return true
	}
	return false
}

// Event is one domain event. Events are transient: they are dispatched to
// subscribers and then dropped, never persisted.
type Event struct {
	// Kind is the event type from the closed set above.
	Kind Kind

	// CallID is the subject call. Together with Kind it forms the
	// idempotence key.
	CallID string

	// Payload carries kind-specific fields (room name, summary, ...).
	Payload map[string]any

	// At is the emission timestamp.
	At time.Time
}
