// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service and renders a complete
// utterance into raw linear PCM. Callers pace the resulting audio onto the
// media transport themselves, so the interface is deliberately
// request/response rather than streaming.
//
// Implementations must be safe for concurrent use; multiple calls may
// synthesize replies at the same time.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text into raw 16-bit little-endian mono PCM at
	// the provider's configured sample rate. voice selects the voice
	// profile; an empty voice uses the provider default.
	//
	// Returns an error if the provider cannot be reached or rejects the
	// request. An empty text input returns an error, not empty audio.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)

	// SampleRate reports the sample rate in Hz of the PCM returned by
	// Synthesize.
	SampleRate() int
}
