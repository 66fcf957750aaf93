package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/sonara-ai/sonara/pkg/audio"
)

// samplesToBytes converts int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		frame audio.Frame
		want  bool
	}{
		{"mono 16k", audio.Frame{Data: make([]byte, 640), SampleRate: 16000, Channels: 1}, true},
		{"mono 48k", audio.Frame{Data: make([]byte, 960), SampleRate: 48000, Channels: 1}, true},
		{"stereo", audio.Frame{Data: make([]byte, 640), SampleRate: 16000, Channels: 2}, false},
		{"zero channels", audio.Frame{Data: make([]byte, 640), SampleRate: 16000, Channels: 0}, false},
		{"unsupported rate", audio.Frame{Data: make([]byte, 640), SampleRate: 44100, Channels: 1}, false},
		{"empty payload", audio.Frame{SampleRate: 16000, Channels: 1}, false},
		{"sub-sample payload", audio.Frame{Data: []byte{0x01}, SampleRate: 16000, Channels: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audio.Valid(tt.frame); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameDuration(t *testing.T) {
	// 320 samples at 16kHz is one 20ms pacing interval.
	f := audio.Frame{Data: make([]byte, 640), SampleRate: 16000, Channels: 1}
	if got := f.Duration(); got != 20*time.Millisecond {
		t.Errorf("Duration() = %v, want 20ms", got)
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	got := bytesToSamples(audio.StereoToMono(stereo))
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleMono16_HalvesRate(t *testing.T) {
	src := samplesToBytes(make([]int16, 960)) // 20ms at 48kHz
	out := audio.ResampleMono16(src, 48000, 16000)
	if got := len(out) / 2; got != 320 {
		t.Errorf("resampled sample count = %d, want 320", got)
	}
}

func TestConverter_FastPath(t *testing.T) {
	c := &audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	in := audio.Frame{Data: samplesToBytes([]int16{1, 2, 3}), SampleRate: 16000, Channels: 1}
	out := c.Convert(in)
	if &out.Data[0] != &in.Data[0] {
		t.Error("matching frame should be returned unchanged")
	}
}

func TestConverter_DownmixAndResample(t *testing.T) {
	c := &audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	in := audio.Frame{Data: make([]byte, 960*4), SampleRate: 48000, Channels: 2}
	out := c.Convert(in)
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Fatalf("converted format = %dHz %dch, want 16000Hz 1ch", out.SampleRate, out.Channels)
	}
	if got := out.Samples(); got != 320 {
		t.Errorf("converted sample count = %d, want 320", got)
	}
}

func TestConverter_OddByteCount(t *testing.T) {
	c := &audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	out := c.Convert(audio.Frame{Data: []byte{0x01, 0x02, 0x03}, SampleRate: 48000, Channels: 1})
	if out.Data != nil {
		t.Error("corrupt frame should yield nil data")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := samplesToBytes([]int16{10, -10, 20, -20, 30})

	var buf bytes.Buffer
	if err := audio.WriteWAV(&buf, pcm, 16000, 1); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	info, err := audio.ParseWAVHeader(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseWAVHeader: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", info.SampleRate)
	}
	if info.Channels != 1 {
		t.Errorf("Channels = %d, want 1", info.Channels)
	}
	if info.Samples != 5 {
		t.Errorf("Samples = %d, want 5", info.Samples)
	}
	if buf.Len() != 44+len(pcm) {
		t.Errorf("total size = %d, want %d", buf.Len(), 44+len(pcm))
	}
}

func TestParseWAVHeader_Rejects(t *testing.T) {
	if _, err := audio.ParseWAVHeader([]byte("too short")); err == nil {
		t.Error("short buffer should be rejected")
	}
	junk := make([]byte, 64)
	if _, err := audio.ParseWAVHeader(junk); err == nil {
		t.Error("non-RIFF buffer should be rejected")
	}
}
