// Package deepgram provides a Deepgram-backed TTS provider using the
// Deepgram speak REST API. It implements the tts.Provider interface.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const (
	speakEndpoint     = "https://api.deepgram.com/v1/speak"
	defaultVoice      = "aura-asteria-en"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithVoice sets the default Deepgram voice model (e.g., "aura-asteria-en").
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithSampleRate sets the PCM output sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Provider backed by the Deepgram speak API. It
// returns uncontainered linear16 PCM ready for frame pacing.
type Provider struct {
	apiKey     string
	voice      string
	sampleRate int
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		voice:      defaultVoice,
		sampleRate: defaultSampleRate,
		endpoint:   speakEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SampleRate reports the configured PCM output rate.
func (p *Provider) SampleRate() int { return p.sampleRate }

// Synthesize renders text as raw linear16 PCM via the speak endpoint.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("deepgram: text must not be empty")
	}
	if voice == "" {
		voice = p.voice
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("deepgram: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.buildURL(voice), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: speak request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepgram: speak returned status %d: %s", resp.StatusCode, msg)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, errors.New("deepgram: speak returned no audio")
	}
	return pcm, nil
}

// buildURL constructs the speak endpoint URL for the given voice model.
func (p *Provider) buildURL(voice string) string {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return p.endpoint
	}
	q := u.Query()
	q.Set("model", voice)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(p.sampleRate))
	q.Set("container", "none")
	u.RawQuery = q.Encode()
	return u.String()
}
