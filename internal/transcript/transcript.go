// Package transcript implements the turn ledger: the append-only log of
// spoken turns per call. Turns are never mutated or deleted, and no turn
// may be appended once its call has ended.
package transcript

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "automated_agent"
	SpeakerHuman  Speaker = "human_agent"
)

// ValidSpeaker reports whether s belongs to the closed role set.
func ValidSpeaker(s Speaker) bool {
	switch s {
	case SpeakerCaller, SpeakerAgent, SpeakerHuman:
		return true
	}
	return false
}

// Turn is one spoken utterance attributed to a single speaker.
type Turn struct {
	ID         string
	CallID     string
	Speaker    Speaker
	Text       string
	Confidence float64
	Language   string
	CreatedAt  time.Time
}

// ErrValidation marks malformed turn payloads; the HTTP boundary maps it
// to a bad-request response.
var ErrValidation = errors.New("transcript: validation failed")

// Validate checks a turn before it enters the ledger: known speaker,
// non-empty text after trimming, confidence within [0, 1].
func Validate(t *Turn) error {
	if !ValidSpeaker(t.Speaker) {
		return fmt.Errorf("%w: unknown speaker role %q", ErrValidation, t.Speaker)
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: text must not be empty", ErrValidation)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f outside [0, 1]", ErrValidation, t.Confidence)
	}
	return nil
}
