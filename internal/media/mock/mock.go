// Package mock provides in-memory test doubles for the media transport
// interfaces.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/sonara-ai/sonara/internal/media"
	"github.com/sonara-ai/sonara/pkg/audio"
)

// InputStream feeds frames from a channel. Close the channel to signal
// end of track.
type InputStream struct {
	Frames chan audio.Frame
}

// NewInputStream returns a stream with a buffered frame channel.
func NewInputStream() *InputStream {
	return &InputStream{Frames: make(chan audio.Frame, 64)}
}

// Next implements media.InputStream.
func (s *InputStream) Next(ctx context.Context) (audio.Frame, error) {
	select {
	case f, ok := <-s.Frames:
		if !ok {
			return audio.Frame{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}

// OutputSource records every frame written to it.
type OutputSource struct {
	mu     sync.Mutex
	frames []audio.Frame

	// WriteErr, if non-nil, is returned by every WriteFrame call.
	WriteErr error
}

// WriteFrame implements media.OutputSource.
func (o *OutputSource) WriteFrame(_ context.Context, frame audio.Frame) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.WriteErr != nil {
		return o.WriteErr
	}
	o.frames = append(o.frames, frame)
	return nil
}

// Frames returns a snapshot of the frames written so far.
func (o *OutputSource) Frames() []audio.Frame {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]audio.Frame(nil), o.frames...)
}

var (
	_ media.InputStream  = (*InputStream)(nil)
	_ media.OutputSource = (*OutputSource)(nil)
)
