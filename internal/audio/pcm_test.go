package audio

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestFloatToInt16LE_Clamping(t *testing.T) {
	out := FloatToInt16LE([]float32{2.0, -2.0, 0.0})

	if len(out) != 6 {
		t.Fatalf("Expected 6 bytes, got %d", len(out))
	}

	max := int16(out[0]) | int16(out[1])<<8
	min := int16(out[2]) | int16(out[3])<<8
	zero := int16(out[4]) | int16(out[5])<<8

	if max != math.MaxInt16 {
		t.Errorf("Expected +2.0 to clamp to %d, got %d", math.MaxInt16, max)
	}
	if min != math.MinInt16 {
		t.Errorf("Expected -2.0 to clamp to %d, got %d", math.MinInt16, min)
	}
	if zero != 0 {
		t.Errorf("Expected 0.0 to map to 0, got %d", zero)
	}
}

func TestFloatToInt16LE_RoundTrip(t *testing.T) {
	in := []float32{0.0, 0.25, -0.25, 0.5, -0.5, 1.0, -1.0}
	out := Int16LEToFloat(FloatToInt16LE(in))

	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32767 {
			t.Errorf("Sample %d: expected %v, got %v (diff %v)", i, in[i], out[i], diff)
		}
	}
}

func TestBase64_RoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0},
		{0x00, 0xFF, 0x7F, 0x80},
		bytes.Repeat([]byte{0xAB, 0xCD}, 1024),
	}

	for _, in := range tests {
		decoded, err := DecodeBase64(EncodeBase64(in))
		if err != nil {
			t.Fatalf("Unexpected decode error for %d bytes: %v", len(in), err)
		}
		if !bytes.Equal(decoded, in) {
			t.Errorf("Round trip mismatch for %d bytes", len(in))
		}
	}
}

func TestDecodeBase64_Invalid(t *testing.T) {
	if _, err := DecodeBase64("not base64!!!"); err == nil {
		t.Error("Expected error for invalid base64 input")
	}
}

func TestDecodeChunk(t *testing.T) {
	// 4 mono samples at 24kHz.
	data := FloatToInt16LE([]float32{0.1, -0.1, 0.2, -0.2})
	buf, err := DecodeChunk(data, 24000, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(buf.Samples) != 4 {
		t.Errorf("Expected 4 samples, got %d", len(buf.Samples))
	}
	if buf.SampleRate != 24000 || buf.Channels != 1 {
		t.Errorf("Expected 24000Hz mono, got %dHz %dch", buf.SampleRate, buf.Channels)
	}
}

func TestDecodeChunk_MalformedLength(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		channels int
	}{
		{"odd byte count", []byte{1, 2, 3}, 1},
		{"empty payload", nil, 1},
		{"not frame aligned for stereo", []byte{1, 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeChunk(tt.data, 24000, tt.channels)
			if !errors.Is(err, ErrMalformedChunk) {
				t.Errorf("Expected ErrMalformedChunk, got %v", err)
			}
		})
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{Samples: make([]float32, 24000), SampleRate: 24000, Channels: 1}
	if d := buf.Duration(); d != 1.0 {
		t.Errorf("Expected 1s duration, got %v", d)
	}

	stereo := &Buffer{Samples: make([]float32, 24000), SampleRate: 24000, Channels: 2}
	if d := stereo.Duration(); d != 0.5 {
		t.Errorf("Expected 0.5s duration for stereo, got %v", d)
	}

	var nilBuf *Buffer
	if d := nilBuf.Duration(); d != 0 {
		t.Errorf("Expected 0 duration for nil buffer, got %v", d)
	}
}

func TestStridedRMS(t *testing.T) {
	// Constant amplitude: RMS equals the amplitude regardless of stride.
	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = 0.5
	}

	rms := StridedRMS(samples, 16)
	if math.Abs(rms-0.5) > 1e-6 {
		t.Errorf("Expected RMS 0.5, got %v", rms)
	}

	if StridedRMS(nil, 16) != 0 {
		t.Error("Expected RMS 0 for empty input")
	}

	// Stride below 1 falls back to every sample.
	if got := StridedRMS(samples, 0); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("Expected RMS 0.5 for stride 0, got %v", got)
	}
}

func TestCalculateRMS(t *testing.T) {
	samples := []float32{0.1, -0.1, 0.2, -0.2}
	rms := CalculateRMS(samples)

	expected := math.Sqrt((0.01 + 0.01 + 0.04 + 0.04) / 4)
	if math.Abs(rms-expected) > 1e-6 {
		t.Errorf("Expected RMS %.6f, got %.6f", expected, rms)
	}
}
