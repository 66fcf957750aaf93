package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// ErrNotWAV is returned by ParseWAVHeader when the buffer does not start
// with a canonical RIFF/WAVE PCM header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE PCM header")

// WAVInfo describes a parsed WAV header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	Samples    int
}

// WriteWAV writes a canonical 44-byte RIFF/WAVE header followed by the
// raw 16-bit little-endian PCM payload. Used for per-call debug
// recordings only; not part of any wire protocol.
func WriteWAV(w io.Writer, pcm []byte, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("audio: invalid WAV format %dHz %dch", sampleRate, channels)
	}

	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(pcm)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write WAV header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write WAV data: %w", err)
	}
	return nil
}

// ParseWAVHeader reads the canonical 44-byte header from buf and returns
// the declared format. Only uncompressed 16-bit PCM is recognised.
func ParseWAVHeader(buf []byte) (WAVInfo, error) {
	if len(buf) < wavHeaderSize {
		return WAVInfo{}, ErrNotWAV
	}
	if string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WAVE" || string(buf[12:16]) != "fmt " {
		return WAVInfo{}, ErrNotWAV
	}
	if format := binary.LittleEndian.Uint16(buf[20:22]); format != 1 {
		return WAVInfo{}, fmt.Errorf("audio: unsupported WAV format code %d", format)
	}
	if bits := binary.LittleEndian.Uint16(buf[34:36]); bits != 16 {
		return WAVInfo{}, fmt.Errorf("audio: unsupported bit depth %d", bits)
	}
	if string(buf[36:40]) != "data" {
		return WAVInfo{}, ErrNotWAV
	}

	channels := int(binary.LittleEndian.Uint16(buf[22:24]))
	rate := int(binary.LittleEndian.Uint32(buf[24:28]))
	dataLen := int(binary.LittleEndian.Uint32(buf[40:44]))
	if channels <= 0 || rate <= 0 {
		return WAVInfo{}, ErrNotWAV
	}

	return WAVInfo{
		SampleRate: rate,
		Channels:   channels,
		Samples:    dataLen / 2 / channels,
	}, nil
}
