package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sonara-ai/sonara/internal/call"
	"github.com/sonara-ai/sonara/internal/event"
	mediamock "github.com/sonara-ai/sonara/internal/media/mock"
	"github.com/sonara-ai/sonara/internal/observe"
	"github.com/sonara-ai/sonara/internal/transcript"
	"github.com/sonara-ai/sonara/pkg/audio"
	llmmock "github.com/sonara-ai/sonara/pkg/provider/llm/mock"
	"github.com/sonara-ai/sonara/pkg/provider/stt"
	sttmock "github.com/sonara-ai/sonara/pkg/provider/stt/mock"
	ttsmock "github.com/sonara-ai/sonara/pkg/provider/tts/mock"
)

type fixture struct {
	p       *Pipeline
	callID  string
	session *sttmock.Session
	sttP    *sttmock.Provider
	ttsP    *ttsmock.Provider
	llmP    *llmmock.Provider
	out     *mediamock.OutputSource
	ledger  *transcript.Service
}

type noTokens struct{}

func (noTokens) CallerToken(string) (string, error) { return "t", nil }

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	notifier := event.NewNotifier(nil)
	calls := call.NewService(call.NewMemStore(), notifier, noTokens{})
	c, _, err := calls.Create(ctx, "web_widget")
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if _, err := calls.Start(ctx, c.ID); err != nil {
		t.Fatalf("start call: %v", err)
	}
	ledger := transcript.NewService(transcript.NewMemStore(), calls)

	session := sttmock.NewSession()
	sttP := &sttmock.Provider{Session: session}
	ttsP := &ttsmock.Provider{}
	llmP := &llmmock.Provider{Reply: "happy to help"}
	out := &mediamock.OutputSource{}

	opts = append([]Option{WithFrameDuration(time.Millisecond)}, opts...)
	p := New(c.ID, sttP, ttsP, llmP, ledger, out, opts...)
	t.Cleanup(p.Destroy)

	return &fixture{
		p:       p,
		callID:  c.ID,
		session: session,
		sttP:    sttP,
		ttsP:    ttsP,
		llmP:    llmP,
		out:     out,
		ledger:  ledger,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fixture) turns(t *testing.T) []*transcript.Turn {
	t.Helper()
	turns, err := f.ledger.Recent(context.Background(), f.callID, 100)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	return turns
}

func TestPipeline_StartSpeaksGreeting(t *testing.T) {
	f := newFixture(t)

	if err := f.p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	turns := f.turns(t)
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Speaker != transcript.SpeakerAgent {
		t.Errorf("speaker = %s", turns[0].Speaker)
	}
	if turns[0].Text != defaultGreeting {
		t.Errorf("text = %q", turns[0].Text)
	}
	if len(f.out.Frames()) == 0 {
		t.Error("no audio emitted for greeting")
	}
}

func TestPipeline_UnsupportedSynthesisRateNotEmitted(t *testing.T) {
	f := newFixture(t)
	f.ttsP.Rate = 22050

	if err := f.p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The greeting is still ledgered, but no frame at an unsupported
	// rate leaves for the room.
	if turns := f.turns(t); len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if got := f.out.Frames(); len(got) != 0 {
		t.Errorf("emitted %d frames at 22050 Hz, want 0", len(got))
	}
}

func TestPipeline_RecordsStageLatencies(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	f := newFixture(t, WithMetrics(metrics))
	in := mediamock.NewInputStream()

	ctx := context.Background()
	if err := f.p.AttachInput(ctx, in); err != nil {
		t.Fatalf("AttachInput: %v", err)
	}
	f.session.FinalsCh <- stt.Transcript{Text: "where is my parcel", Confidence: 0.9}
	waitFor(t, func() bool { return len(f.out.Frames()) > 0 })
	f.p.Destroy()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]uint64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
				for _, dp := range hist.DataPoints {
					counts[m.Name] += dp.Count
				}
			}
		}
	}
	for _, name := range []string{
		"sonara.stt.duration",
		"sonara.llm.duration",
		"sonara.tts.duration",
		"sonara.turn.duration",
	} {
		if counts[name] == 0 {
			t.Errorf("histogram %s recorded nothing (all: %v)", name, counts)
		}
	}
}

func TestPipeline_AttachInputForwardsAudio(t *testing.T) {
	f := newFixture(t)
	in := mediamock.NewInputStream()

	if err := f.p.AttachInput(context.Background(), in); err != nil {
		t.Fatalf("AttachInput: %v", err)
	}

	valid := audio.Frame{Data: make([]byte, 640), SampleRate: audio.RateTelephony, Channels: 1}
	invalid := audio.Frame{Data: make([]byte, 640), SampleRate: 44100, Channels: 1}
	in.Frames <- valid
	in.Frames <- invalid
	in.Frames <- valid
	close(in.Frames)

	waitFor(t, func() bool { return f.session.AudioBytes() == 1280 })
	f.p.Destroy()

	if got := f.session.AudioBytes(); got != 1280 {
		t.Errorf("forwarded bytes = %d, want 1280 (invalid frame dropped)", got)
	}
	cfgs := f.sttP.Calls()
	if len(cfgs) != 1 {
		t.Fatalf("StartStream calls = %d", len(cfgs))
	}
	if cfgs[0].Cfg.SampleRate != audio.RateTelephony || cfgs[0].Cfg.Channels != 1 {
		t.Errorf("stream config = %+v", cfgs[0].Cfg)
	}
}

func TestPipeline_SecondAttachRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); err != nil {
		t.Fatalf("first AttachInput: %v", err)
	}
	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); !errors.Is(err, ErrAlreadyCapturing) {
		t.Errorf("second AttachInput error = %v, want ErrAlreadyCapturing", err)
	}
	if len(f.sttP.Calls()) != 1 {
		t.Errorf("StartStream calls = %d, want 1", len(f.sttP.Calls()))
	}
}

func TestPipeline_FinalTranscriptProducesReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); err != nil {
		t.Fatalf("AttachInput: %v", err)
	}

	f.session.FinalsCh <- stt.Transcript{Text: "I need to check my booking", Confidence: 0.95}
	f.session.FinalsCh <- stt.Transcript{Text: "   ", Confidence: 0.4}
	f.p.Destroy()

	turns := f.turns(t)
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2 (caller + agent, blank final skipped)", len(turns))
	}
	if turns[0].Speaker != transcript.SpeakerCaller || turns[0].Text != "I need to check my booking" {
		t.Errorf("caller turn = %+v", turns[0])
	}
	if turns[0].Language != "en" {
		t.Errorf("caller language = %q", turns[0].Language)
	}
	if turns[1].Speaker != transcript.SpeakerAgent || turns[1].Text != "happy to help" {
		t.Errorf("agent turn = %+v", turns[1])
	}

	if len(f.llmP.Calls()) != 1 {
		t.Fatalf("llm calls = %d, want 1", len(f.llmP.Calls()))
	}
	if len(f.out.Frames()) == 0 {
		t.Error("no reply audio emitted")
	}
}

func TestPipeline_ReasoningFailureDegradesToApology(t *testing.T) {
	f := newFixture(t)
	f.llmP.Err = errors.New("model unavailable")
	ctx := context.Background()

	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); err != nil {
		t.Fatalf("AttachInput: %v", err)
	}
	f.session.FinalsCh <- stt.Transcript{Text: "hello", Confidence: 1}
	f.p.Destroy()

	turns := f.turns(t)
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[1].Text != apologyReply {
		t.Errorf("agent turn = %q, want apology", turns[1].Text)
	}
	if len(f.out.Frames()) == 0 {
		t.Error("apology not spoken")
	}
}

func TestPipeline_SynthesisFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.ttsP.Err = errors.New("synth down")

	if err := f.p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Both primary and fallback synthesis fail: reply skipped, no crash.
	if len(f.out.Frames()) != 0 {
		t.Errorf("frames emitted = %d, want 0", len(f.out.Frames()))
	}
	calls := f.ttsP.Calls()
	if len(calls) != 2 {
		t.Fatalf("synthesize calls = %d, want 2 (primary + fallback)", len(calls))
	}
	if calls[1].Text != fallbackUtterance {
		t.Errorf("fallback text = %q", calls[1].Text)
	}
}

func TestPipeline_EmitPacesFrames(t *testing.T) {
	f := newFixture(t)
	// 16000 Hz at 1ms pacing is 32 bytes per frame; 100 bytes of PCM
	// should yield 4 frames with a short final frame.
	f.ttsP.PCM = make([]byte, 100)

	if err := f.p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frames := f.out.Frames()
	if len(frames) != 4 {
		t.Fatalf("frames = %d, want 4", len(frames))
	}
	for i, fr := range frames[:3] {
		if len(fr.Data) != 32 {
			t.Errorf("frame %d size = %d, want 32", i, len(fr.Data))
		}
	}
	if len(frames[3].Data) != 4 {
		t.Errorf("final frame size = %d, want 4", len(frames[3].Data))
	}
	if frames[1].Timestamp <= frames[0].Timestamp {
		t.Error("timestamps not increasing")
	}
}

func TestPipeline_DestroyIdempotentAndReleasesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); err != nil {
		t.Fatalf("AttachInput: %v", err)
	}

	f.p.Destroy()
	f.p.Destroy()

	if f.session.CloseCallCount == 0 {
		t.Error("transcription session not released")
	}
	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); !errors.Is(err, ErrStopped) {
		t.Errorf("AttachInput after Destroy = %v, want ErrStopped", err)
	}
	if err := f.p.Start(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Destroy = %v, want ErrStopped", err)
	}
}

func TestPipeline_HistoryRidesAlongInPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.p.AttachInput(ctx, mediamock.NewInputStream()); err != nil {
		t.Fatalf("AttachInput: %v", err)
	}
	f.session.FinalsCh <- stt.Transcript{Text: "first question", Confidence: 1}
	f.session.FinalsCh <- stt.Transcript{Text: "second question", Confidence: 1}
	f.p.Destroy()

	reqs := f.llmP.Calls()
	if len(reqs) != 2 {
		t.Fatalf("llm calls = %d, want 2", len(reqs))
	}
	// Second request carries greeting, first exchange, and the new
	// utterance.
	last := reqs[1]
	if len(last.Messages) < 4 {
		t.Fatalf("second prompt messages = %d, want >= 4", len(last.Messages))
	}
	if got := last.Messages[len(last.Messages)-1].Content; got != "second question" {
		t.Errorf("last message = %q", got)
	}
	if last.SystemPrompt != defaultSystemPrompt {
		t.Errorf("system prompt = %q", last.SystemPrompt)
	}
}

func TestPipeline_DebugRecordingWritesWAV(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, WithDebugRecording(dir))

	if err := f.p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.p.Destroy()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("recordings = %d, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "call_"+f.callID[:8]+"_") || !strings.HasSuffix(name, ".wav") {
		t.Errorf("recording name = %q", name)
	}

	buf, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	info, err := audio.ParseWAVHeader(buf)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if info.SampleRate != f.ttsP.SampleRate() || info.Channels != 1 {
		t.Errorf("wav info = %+v", info)
	}
}
