// Package pipeline implements the per-call turn-taking loop: continuous
// caller audio capture into the speech-to-text stream, finalized
// transcripts through the reasoning provider, and paced playback of the
// synthesized reply so one spoken turn finishes before the next starts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonara-ai/sonara/internal/language"
	"github.com/sonara-ai/sonara/internal/media"
	"github.com/sonara-ai/sonara/internal/observe"
	"github.com/sonara-ai/sonara/internal/transcript"
	"github.com/sonara-ai/sonara/pkg/audio"
	"github.com/sonara-ai/sonara/pkg/provider/llm"
	"github.com/sonara-ai/sonara/pkg/provider/stt"
	"github.com/sonara-ai/sonara/pkg/provider/tts"
)

const (
	// defaultFrameDuration is the fixed playback pacing interval. One
	// frame is emitted per tick so downstream playback never outruns
	// synthesis.
	defaultFrameDuration = 20 * time.Millisecond

	// defaultHistoryWindow bounds how many prior turns ride along in the
	// reasoning prompt.
	defaultHistoryWindow = 20

	defaultGreeting = "Hello! Thank you for calling. How can I help you today?"

	defaultSystemPrompt = "You are a helpful voice support agent. Keep replies short and conversational; they will be spoken aloud."

	// apologyReply is spoken when the reasoning provider fails.
	apologyReply = "I'm sorry, I'm having a little trouble right now. Could you say that again?"

	// fallbackUtterance is synthesized when the primary synthesis of a
	// reply fails.
	fallbackUtterance = "I'm sorry, could you repeat that?"
)

// Errors returned by pipeline operations.
var (
	ErrAlreadyCapturing = errors.New("pipeline: input already attached")
	ErrStopped          = errors.New("pipeline: stopped")
)

// Ledger is the slice of the turn ledger the pipeline writes and reads.
// *transcript.Service satisfies it.
type Ledger interface {
	Append(ctx context.Context, t *transcript.Turn) (*transcript.Turn, error)
	Recent(ctx context.Context, callID string, limit int) ([]*transcript.Turn, error)
}

// Pipeline drives the conversation for exactly one call. Create one per
// call, never share across calls.
type Pipeline struct {
	callID string
	sttP   stt.Provider
	ttsP   tts.Provider
	llmP   llm.Provider
	ledger Ledger
	out    media.OutputSource

	greeting      string
	systemPrompt  string
	voice         string
	frameDuration time.Duration
	historyWindow int

	recordDir string
	rec       *recorder
	metrics   *observe.Metrics

	capturing atomic.Bool
	stopped   atomic.Bool
	done      chan struct{}
	once      sync.Once

	// speakMu serializes spoken replies: at most one live speaking turn.
	speakMu sync.Mutex

	mu      sync.Mutex
	session stt.SessionHandle
	cancel  context.CancelFunc

	// wg tracks the capture and transcript goroutines so Destroy and
	// tests can synchronise with loop exit.
	wg sync.WaitGroup
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithGreeting overrides the opening utterance spoken on Start.
func WithGreeting(text string) Option {
	return func(p *Pipeline) { p.greeting = text }
}

// WithSystemPrompt overrides the reasoning provider's system prompt.
func WithSystemPrompt(text string) Option {
	return func(p *Pipeline) { p.systemPrompt = text }
}

// WithVoice selects the synthesis voice.
func WithVoice(voice string) Option {
	return func(p *Pipeline) { p.voice = voice }
}

// WithFrameDuration overrides the playback pacing interval. Default is
// 20ms. Tests shorten it.
func WithFrameDuration(d time.Duration) Option {
	return func(p *Pipeline) { p.frameDuration = d }
}

// WithHistoryWindow bounds the prompt history. Default is 20 turns.
func WithHistoryWindow(n int) Option {
	return func(p *Pipeline) { p.historyWindow = n }
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New constructs a pipeline for one call.
func New(callID string, sttP stt.Provider, ttsP tts.Provider, llmP llm.Provider, ledger Ledger, out media.OutputSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		callID:        callID,
		sttP:          sttP,
		ttsP:          ttsP,
		llmP:          llmP,
		ledger:        ledger,
		out:           out,
		greeting:      defaultGreeting,
		systemPrompt:  defaultSystemPrompt,
		frameDuration: defaultFrameDuration,
		historyWindow: defaultHistoryWindow,
		metrics:       observe.DefaultMetrics(),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	if p.recordDir != "" {
		p.rec = newRecorder(p.recordDir, callID, ttsP.SampleRate())
	}
	return p
}

// Start speaks the greeting. The greeting is logged as an agent turn and
// played like any other reply, so the caller hears the agent first.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	p.speak(ctx, p.greeting)
	return nil
}

// AttachInput binds the caller's audio track to the speech-to-text
// stream and starts the capture loop. Only one loop may run per call: a
// second attach while one is active fails with ErrAlreadyCapturing.
func (p *Pipeline) AttachInput(ctx context.Context, in media.InputStream) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if !p.capturing.CompareAndSwap(false, true) {
		return ErrAlreadyCapturing
	}

	ctx, cancel := context.WithCancel(ctx)

	session, err := p.sttP.StartStream(ctx, stt.StreamConfig{
		SampleRate: audio.RateTelephony,
		Channels:   1,
	})
	if err != nil {
		cancel()
		p.capturing.Store(false)
		p.metrics.RecordProviderError(ctx, "stt", "start_stream")
		return fmt.Errorf("pipeline: start transcription stream: %w", err)
	}

	p.mu.Lock()
	p.session = session
	p.cancel = cancel
	p.mu.Unlock()

	// Stopped while the stream was being dialed. Release it here since
	// Destroy may have run before the handle was recorded.
	if p.stopped.Load() {
		cancel()
		session.Close()
		return ErrStopped
	}

	p.wg.Add(2)
	go p.captureLoop(ctx, in, session)
	go p.transcriptLoop(ctx, session)
	slog.Info("pipeline capturing", "callId", p.callID)
	return nil
}

// captureLoop forwards caller frames to the transcription stream until
// the track ends or the pipeline stops. Invalid frames are dropped
// without interrupting the stream; segmentation is the provider's job.
func (p *Pipeline) captureLoop(ctx context.Context, in media.InputStream, session stt.SessionHandle) {
	defer p.wg.Done()

	conv := &audio.Converter{Target: audio.Format{SampleRate: audio.RateTelephony, Channels: 1}}
	for {
		frame, err := in.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				slog.Warn("pipeline input read failed", "callId", p.callID, "error", err)
			}
			return
		}
		if p.stopped.Load() {
			return
		}
		if !audio.Valid(frame) {
			continue
		}

		frame = conv.Convert(frame)
		if len(frame.Data) == 0 {
			continue
		}
		if err := session.SendAudio(frame.Data); err != nil {
			slog.Warn("pipeline audio forward failed", "callId", p.callID, "error", err)
			p.metrics.RecordProviderError(ctx, "stt", "send_audio")
			return
		}
		if p.stopped.Load() {
			return
		}
	}
}

// transcriptLoop consumes finalized transcripts and produces one spoken
// reply per utterance. It drains until the provider closes the finals
// channel; playback of any in-flight reply is cut short by Destroy.
func (p *Pipeline) transcriptLoop(ctx context.Context, session stt.SessionHandle) {
	defer p.wg.Done()

	// Transcription latency is measured from the end of the previous
	// utterance, the closest proxy available without provider timestamps.
	mark := time.Now()
	for tr := range session.Finals() {
		p.metrics.STTDuration.Record(ctx, time.Since(mark).Seconds())
		text := strings.TrimSpace(tr.Text)
		if text != "" {
			p.respond(ctx, text, tr.Confidence)
		}
		mark = time.Now()
	}
}

// respond runs one conversational turn: ledger the caller's utterance,
// reason over the history, ledger the reply, speak it.
func (p *Pipeline) respond(ctx context.Context, text string, confidence float64) {
	p.speakMu.Lock()
	defer p.speakMu.Unlock()

	turnStart := time.Now()
	defer func() {
		p.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	}()

	lang := language.Detect(text)
	if _, err := p.ledger.Append(ctx, &transcript.Turn{
		CallID:     p.callID,
		Speaker:    transcript.SpeakerCaller,
		Text:       text,
		Confidence: confidence,
		Language:   lang,
	}); err != nil {
		// Ledger failures must not stall the conversation.
		slog.Error("pipeline caller turn not recorded", "callId", p.callID, "error", err)
	}

	reply := p.reason(ctx, text)

	if _, err := p.ledger.Append(ctx, &transcript.Turn{
		CallID:     p.callID,
		Speaker:    transcript.SpeakerAgent,
		Text:       reply,
		Confidence: 1,
		Language:   lang,
	}); err != nil {
		slog.Error("pipeline agent turn not recorded", "callId", p.callID, "error", err)
	}

	p.playReply(ctx, reply)
}

// reason asks the reasoning provider for a reply over the recent turn
// history. A provider failure degrades to a fixed apology.
func (p *Pipeline) reason(ctx context.Context, utterance string) string {
	history, err := p.ledger.Recent(ctx, p.callID, p.historyWindow)
	if err != nil {
		slog.Warn("pipeline history read failed", "callId", p.callID, "error", err)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		role := llm.RoleUser
		if t.Speaker == transcript.SpeakerAgent {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Text})
	}
	if len(history) == 0 || history[len(history)-1].Text != utterance {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})
	}

	start := time.Now()
	resp, err := p.llmP.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: p.systemPrompt,
	})
	if err != nil {
		slog.Error("pipeline reasoning failed", "callId", p.callID, "error", err)
		p.metrics.RecordProviderError(ctx, "llm", "complete")
		return apologyReply
	}
	p.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	return resp.Content
}

// speak logs an agent turn and plays it. Used for the greeting and other
// agent-initiated utterances.
func (p *Pipeline) speak(ctx context.Context, text string) {
	p.speakMu.Lock()
	defer p.speakMu.Unlock()

	if _, err := p.ledger.Append(ctx, &transcript.Turn{
		CallID:     p.callID,
		Speaker:    transcript.SpeakerAgent,
		Text:       text,
		Confidence: 1,
	}); err != nil {
		slog.Error("pipeline agent turn not recorded", "callId", p.callID, "error", err)
	}
	p.playReply(ctx, text)
}

// playReply synthesizes text and paces the PCM to the output track one
// frame per frame duration. A synthesis failure degrades to the fixed
// fallback utterance; if that fails too, the reply is skipped.
func (p *Pipeline) playReply(ctx context.Context, text string) {
	start := time.Now()
	pcm, err := p.ttsP.Synthesize(ctx, text, p.voice)
	if err != nil {
		slog.Error("pipeline synthesis failed", "callId", p.callID, "error", err)
		p.metrics.RecordProviderError(ctx, "tts", "synthesize")
		pcm, err = p.ttsP.Synthesize(ctx, fallbackUtterance, p.voice)
		if err != nil {
			slog.Error("pipeline fallback synthesis failed", "callId", p.callID, "error", err)
			p.metrics.RecordProviderError(ctx, "tts", "synthesize")
			return
		}
	}
	p.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if p.rec != nil {
		p.rec.append(pcm)
	}
	p.emit(ctx, pcm)
}

// emit slices pcm into fixed-duration frames and writes one per tick.
// The per-frame delay equals the frame duration, so playback downstream
// never outruns generation.
func (p *Pipeline) emit(ctx context.Context, pcm []byte) {
	rate := p.ttsP.SampleRate()
	frameBytes := 2 * int(time.Duration(rate)*p.frameDuration/time.Second)
	if frameBytes <= 0 {
		return
	}

	// Outbound audio passes the same validator as inbound. A provider
	// configured for an unsupported rate produces nothing audible rather
	// than malformed frames on the wire.
	if !audio.Valid(audio.Frame{Data: pcm, SampleRate: rate, Channels: 1}) {
		slog.Warn("pipeline dropping synthesized audio, unsupported format",
			"callId", p.callID, "sampleRate", rate, "bytes", len(pcm))
		return
	}

	ticker := time.NewTicker(p.frameDuration)
	defer ticker.Stop()

	var offset time.Duration
	for start := 0; start < len(pcm); start += frameBytes {
		end := start + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frame := audio.Frame{
			Data:       pcm[start:end],
			SampleRate: rate,
			Channels:   1,
			Timestamp:  offset,
		}
		if !audio.Valid(frame) {
			// Sub-sample tail slice.
			return
		}
		if err := p.out.WriteFrame(ctx, frame); err != nil {
			slog.Warn("pipeline playback write failed", "callId", p.callID, "error", err)
			return
		}
		offset += p.frameDuration

		select {
		case <-ticker.C:
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Destroy stops the capture loop and releases the transcription stream.
// Idempotent and safe to call from any goroutine.
func (p *Pipeline) Destroy() {
	p.once.Do(func() {
		p.stopped.Store(true)
		close(p.done)

		p.mu.Lock()
		session := p.session
		cancel := p.cancel
		p.session = nil
		p.cancel = nil
		p.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if session != nil {
			if err := session.Close(); err != nil {
				slog.Warn("pipeline transcription close failed", "callId", p.callID, "error", err)
			}
		}

		p.wg.Wait()
		if p.rec != nil {
			p.rec.flush()
		}
		slog.Info("pipeline destroyed", "callId", p.callID)
	})
}

// CallID returns the call this pipeline is bound to.
func (p *Pipeline) CallID() string {
	return p.callID
}
