package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sonara-ai/sonara/pkg/audio"
)

// recorder accumulates the agent's synthesized audio and writes it out
// as a WAV file when the pipeline is destroyed. Debug tooling only;
// enabled per pipeline via WithDebugRecording.
type recorder struct {
	dir        string
	callID     string
	sampleRate int

	mu  sync.Mutex
	pcm []byte
}

func newRecorder(dir, callID string, sampleRate int) *recorder {
	return &recorder{dir: dir, callID: callID, sampleRate: sampleRate}
}

func (r *recorder) append(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pcm = append(r.pcm, pcm...)
}

// flush writes the accumulated audio as call_<id8>_<timestamp>.wav.
// Nothing is written for a silent pipeline.
func (r *recorder) flush() {
	r.mu.Lock()
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()
	if len(pcm) == 0 {
		return
	}

	id := r.callID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("call_%s_%d.wav", id, time.Now().Unix())
	path := filepath.Join(r.dir, name)

	f, err := os.Create(path)
	if err != nil {
		slog.Warn("debug recording create failed", "path", path, "error", err)
		return
	}
	defer f.Close()

	if err := audio.WriteWAV(f, pcm, r.sampleRate, 1); err != nil {
		slog.Warn("debug recording write failed", "path", path, "error", err)
		return
	}
	slog.Debug("debug recording written", "path", path, "bytes", len(pcm))
}

// WithDebugRecording writes the agent's synthesized audio to a WAV file
// under dir when the pipeline is destroyed.
func WithDebugRecording(dir string) Option {
	return func(p *Pipeline) { p.recordDir = dir }
}
