package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMalformedChunk is returned when a raw PCM payload cannot be split into
// whole 16-bit frames. Callers should drop the chunk and keep the session
// alive; a single bad chunk is not a fatal condition.
var ErrMalformedChunk = errors.New("malformed PCM chunk")

// FloatToInt16LE converts floating-point samples in [-1, 1] to 16-bit signed
// little-endian PCM. Out-of-range input is clamped, never an error. The scale
// is asymmetric (32767 positive, 32768 negative) so that a clamped -1.0 maps
// to the exact int16 minimum.
func FloatToInt16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}

		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}

		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}

// Int16LEToFloat converts 16-bit signed little-endian PCM to floating-point
// samples in [-1, 1]. Data with a trailing odd byte is truncated to whole
// samples.
func Int16LEToFloat(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

// EncodeBase64 encodes binary audio for transport in JSON messages.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes transport-encoded audio back to binary.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	return data, nil
}

// Buffer is a decoded block of PCM audio ready for playback scheduling.
type Buffer struct {
	// Samples holds interleaved floating-point samples.
	Samples []float32

	// SampleRate is the playback rate in Hz.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

// Duration returns the playback length of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return float64(frames) / float64(b.SampleRate)
}

// DecodeChunk decodes raw 16-bit little-endian PCM bytes (not a container
// format) into a playback buffer at the given rate and channel count. It
// returns ErrMalformedChunk when the payload length is not a multiple of the
// sample width times the channel count.
func DecodeChunk(data []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("decode chunk: invalid format rate=%d channels=%d", sampleRate, channels)
	}
	if len(data) == 0 || len(data)%(2*channels) != 0 {
		return nil, fmt.Errorf("decode chunk: %d bytes is not a multiple of %d: %w", len(data), 2*channels, ErrMalformedChunk)
	}

	return &Buffer{
		Samples:    Int16LEToFloat(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}
