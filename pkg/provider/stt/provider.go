// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a real-time transcription service and exposes a
// uniform streaming interface. The central abstraction is SessionHandle:
// once opened, a session accepts raw PCM audio and asynchronously emits
// finalized utterance transcripts. Segmentation is the provider's job;
// callers forward audio continuously and never buffer or split it locally.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"
)

// StreamConfig describes the audio format and recognition hints for a new
// transcription session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Calls stream 16000.
	SampleRate int

	// Channels is the number of audio channels. Providers expect mono.
	Channels int

	// Language is the BCP-47 language tag for recognition. Empty lets the
	// provider auto-detect, if supported.
	Language string
}

// Transcript is one finalized utterance committed by the provider.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the provider's overall score in [0, 1]. Zero when the
	// provider does not report confidence.
	Confidence float64

	// Duration is the length of the utterance, when reported.
	Duration time.Duration
}

// SessionHandle is an open streaming transcription session.
//
// Callers must call Close when the session is no longer needed; failing to
// do so leaks goroutines and network connections inside the provider.
// All methods are safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio to the provider. The
	// chunk must match the SampleRate and Channels agreed in StreamConfig.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Finals returns a read-only channel emitting finalized transcripts.
	// The channel is closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session, flushes pending audio, and releases
	// all resources. Closing more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend. Multiple sessions may
// be open simultaneously, one per live call.
type Provider interface {
	// StartStream opens a new streaming transcription session. The
	// returned SessionHandle is ready to accept audio immediately; the
	// caller owns it and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
