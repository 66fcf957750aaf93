// Package mock provides a test double for the tts package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/sonara-ai/sonara/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// PCM is the audio returned by every Synthesize call. Defaults to one
	// 20ms frame of silence at 16kHz when nil.
	PCM []byte

	// Rate is the value reported by SampleRate. Defaults to 16000.
	Rate int

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// SynthesizeCalls records every call in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns PCM, Err.
func (p *Provider) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.PCM != nil {
		return p.PCM, nil
	}
	return make([]byte, 640), nil
}

// SampleRate returns Rate, defaulting to 16000.
func (p *Provider) SampleRate() int {
	if p.Rate != 0 {
		return p.Rate
	}
	return 16000
}

// Calls returns a snapshot of recorded Synthesize calls.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SynthesizeCall(nil), p.SynthesizeCalls...)
}

var _ tts.Provider = (*Provider)(nil)
