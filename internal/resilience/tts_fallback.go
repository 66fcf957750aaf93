package resilience

import (
	"context"

	"github.com/sonara-ai/sonara/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// synthesis backends. Each backend has its own circuit breaker.
//
// SampleRate reports the primary's rate. Fallback backends must be
// configured for the same output rate, otherwise paced playback would
// mistime frames.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis backend.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// SampleRate returns the primary backend's output rate.
func (f *TTSFallback) SampleRate() int {
	return f.group.entries[0].value.SampleRate()
}
