// Package audio defines the PCM frame type shared by the capture and
// playback paths, plus validation, format conversion, and WAV helpers.
package audio

import "time"

// Frame is a single chunk of linear PCM audio moving through a call.
// Frames arrive from the media transport on ingress and are handed back
// to it on egress; everything in between treats them as opaque 16-bit
// little-endian samples.
type Frame struct {
	// Data holds little-endian int16 PCM samples.
	Data []byte

	// SampleRate in Hz. Telephony-grade streams use 16000, media-room
	// streams 48000.
	SampleRate int

	// Channels: 1 for mono. Anything else is rejected by Valid.
	Channels int

	// Timestamp is the capture offset relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of int16 samples in the frame.
func (f Frame) Samples() int {
	return len(f.Data) / 2
}

// Duration returns the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}
