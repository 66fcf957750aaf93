// Package call implements the call lifecycle manager: the Call record,
// its status state machine, durable stores, and the service that applies
// transitions and emits domain events.
//
// The service owns every write to a Call. Side effects of a transition
// are observable only through the event notifier; the service never calls
// peer services directly, which is what lets side effects be retried or
// replaced independently of state changes.
package call

import "time"

// Status is the lifecycle state of a call.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusActive    Status = "ACTIVE"
	StatusHandedOff Status = "HANDED_OFF"
	StatusEnded     Status = "ENDED"
)

// transitions is the directed transition graph. ENDED is terminal.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusActive, StatusEnded},
	StatusActive:    {StatusHandedOff, StatusEnded},
	StatusHandedOff: {StatusEnded},
	StatusEnded:     {},
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedSources returns every state from which the machine may reach
// target. Stores use this to make check-and-apply a single guarded write.
func AllowedSources(target Status) []Status {
	var sources []Status
	for from, tos := range transitions {
		for _, to := range tos {
			if to == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// Call is one end-to-end support session. It is owned exclusively by the
// lifecycle service; other components read it. Once Status is ENDED the
// record is immutable.
type Call struct {
	// ID is the opaque call identifier.
	ID string

	// RoomName is the media-transport room allocated for this call.
	RoomName string

	// Source is the originating channel (e.g. "web_widget", "phone").
	Source string

	// Status is the current lifecycle state.
	Status Status

	// Summary is the rolling conversation summary, empty until the
	// context service first computes one.
	Summary string

	// Entities maps extracted entity categories to their matches.
	Entities map[string][]string

	CreatedAt   time.Time
	StartedAt   *time.Time
	HandedOffAt *time.Time
	EndedAt     *time.Time
	UpdatedAt   time.Time
}

// Duration reports how long the call has been live: start to end, or
// start to now for a running call. Zero before the call starts.
func (c *Call) Duration(now time.Time) time.Duration {
	if c.StartedAt == nil {
		return 0
	}
	end := now
	if c.EndedAt != nil {
		end = *c.EndedAt
	}
	return end.Sub(*c.StartedAt)
}

// Clone returns a deep copy so store internals never leak mutable state.
func (c *Call) Clone() *Call {
	out := *c
	if c.Entities != nil {
		out.Entities = make(map[string][]string, len(c.Entities))
		for k, v := range c.Entities {
			out.Entities[k] = append([]string(nil), v...)
		}
	}
	return &out
}
