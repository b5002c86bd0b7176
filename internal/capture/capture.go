// Package capture turns an incoming microphone sample stream into fixed-size
// transport frames. It owns the block cutter, the UI level meter, and the
// resample/quantize step in front of the session send primitive.
package capture

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/zara-labs/live-gateway/internal/audio"
)

// Config holds the capture pipeline parameters.
type Config struct {
	// DeviceRate is the sample rate of the incoming microphone stream.
	DeviceRate int

	// TargetRate is the fixed transport rate blocks are resampled to.
	TargetRate int

	// BlockSize is the number of device-rate samples per processed block.
	BlockSize int

	// LevelStride subsamples the block when estimating loudness.
	LevelStride int
}

// DefaultConfig matches the transport contract: 2048-sample blocks resampled
// to 16kHz, level estimated over every 16th sample.
func DefaultConfig(deviceRate int) Config {
	return Config{
		DeviceRate:  deviceRate,
		TargetRate:  16000,
		BlockSize:   2048,
		LevelStride: 16,
	}
}

// Loop accumulates pushed samples, cuts fixed-size blocks, and forwards each
// block (resampled and int16-encoded) to the send callback. A normalized
// loudness value is published per block for visualization.
//
// Push, Stop, and the callbacks may race; after Stop returns no callback is
// invoked again, so the owner can safely release the device handle.
type Loop struct {
	cfg    Config
	ring   *audio.SampleRing
	block  []float32
	logger zerolog.Logger

	mu      sync.Mutex
	onBlock func(pcm []byte)
	onLevel func(level float64)
	stopped bool
}

// NewLoop creates a capture loop. onBlock receives 16-bit little-endian PCM
// at the target rate and must not block; onLevel receives a bounded loudness
// scalar (roughly 0..5). Either callback may be nil.
func NewLoop(cfg Config, logger zerolog.Logger, onBlock func([]byte), onLevel func(float64)) *Loop {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 2048
	}
	if cfg.LevelStride <= 0 {
		cfg.LevelStride = 16
	}
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = 16000
	}
	if cfg.DeviceRate <= 0 {
		cfg.DeviceRate = cfg.TargetRate
	}

	return &Loop{
		cfg: cfg,
		// Headroom for a few blocks of jitter between pushes and cuts.
		ring:    audio.NewSampleRing(cfg.BlockSize*4 + 1),
		block:   make([]float32, cfg.BlockSize),
		logger:  logger,
		onBlock: onBlock,
		onLevel: onLevel,
	}
}

// Push feeds device-rate samples into the loop and processes every complete
// block. Samples that do not fit the ring are dropped with a warning rather
// than blocking the caller; congestion drops frames by design.
func (l *Loop) Push(samples []float32) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	written := l.ring.Write(samples)
	l.mu.Unlock()

	if written < len(samples) {
		l.logger.Warn().
			Int("dropped", len(samples)-written).
			Msg("capture ring full, dropping samples")
	}

	for l.cutBlock() {
	}
}

// cutBlock processes one complete block if available.
func (l *Loop) cutBlock() bool {
	l.mu.Lock()
	if l.stopped || l.ring.Available() < l.cfg.BlockSize {
		l.mu.Unlock()
		return false
	}
	l.ring.Read(l.block)
	onBlock := l.onBlock
	onLevel := l.onLevel
	l.mu.Unlock()

	if onLevel != nil {
		// RMS over a strided subsample, scaled into the 0..~5 range the UI
		// visualizer expects.
		onLevel(audio.StridedRMS(l.block, l.cfg.LevelStride) * 5)
	}

	if onBlock == nil {
		return true
	}

	frame := l.block
	if l.cfg.DeviceRate != l.cfg.TargetRate {
		frame = audio.Resample(frame, l.cfg.DeviceRate, l.cfg.TargetRate)
	}
	onBlock(audio.FloatToInt16LE(frame))
	return true
}

// Stop detaches both callbacks and discards buffered samples. It is
// idempotent. Callers must Stop before releasing the underlying device so a
// late block cannot fire into a closed connection.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped = true
	l.onBlock = nil
	l.onLevel = nil
	l.ring.Clear()
}

// Stopped reports whether the loop has been stopped.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}
