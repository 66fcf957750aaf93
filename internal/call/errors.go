package call

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the HTTP boundary, where they map to
// distinct status semantics (not-found vs conflict).
var (
	// ErrNotFound means the call id is unknown.
	ErrNotFound = errors.New("call: not found")

	// ErrInvalidTransition means the requested state move is not in the
	// transition table, including any move out of ENDED.
	ErrInvalidTransition = errors.New("call: invalid status transition")

	// ErrCallEnded means a write was attempted against an ENDED call.
	ErrCallEnded = errors.New("call: call has ended")
)

// TransitionError wraps ErrInvalidTransition with the attempted edge.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("call: invalid status transition %s -> %s", e.From, e.To)
}

// Unwrap lets errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
