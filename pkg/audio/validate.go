package audio

// Supported mono sample rates for frames entering or leaving a call.
const (
	RateTelephony = 16000
	RateMedia     = 48000
)

// Valid reports whether a frame is acceptable for streaming: exactly one
// channel, a supported sample rate, and at least one whole sample of
// payload. Invalid frames are dropped by callers rather than raised as
// errors; malformed frames are expected under real-time jitter and must
// not interrupt the stream.
func Valid(f Frame) bool {
	if f.Channels != 1 {
		return false
	}
	if f.SampleRate != RateTelephony && f.SampleRate != RateMedia {
		return false
	}
	return f.Samples() > 0
}
