package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_gateway_active_sessions",
		Help: "Number of active live voice sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_gateway_sessions_total",
		Help: "Total number of live voice sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_gateway_session_duration_seconds",
		Help:    "Duration of live voice sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	connectLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_gateway_connect_latency_seconds",
		Help:    "Time from dial to setup acknowledgement in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_gateway_decode_errors_total",
		Help: "Total malformed audio chunks dropped",
	})

	interruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_gateway_interruptions_total",
		Help: "Total barge-in interruptions handled",
	})

	// Tool metrics
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_gateway_tool_calls_total",
		Help: "Total model tool invocations",
	}, []string{"tool"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// Metrics tracks metrics for a single live session
type Metrics struct {
	sessionID string
	startTime time.Time

	mu        sync.Mutex
	dialStart time.Time
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordDialStart marks the beginning of the connect handshake
func (m *Metrics) RecordDialStart() {
	m.mu.Lock()
	m.dialStart = time.Now()
	m.mu.Unlock()
}

// RecordSessionOpen records setup acknowledgement latency
func (m *Metrics) RecordSessionOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dialStart.IsZero() {
		connectLatency.Observe(time.Since(m.dialStart).Seconds())
	}
}

// RecordAudioBytes records audio bytes processed
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordDecodeError records a dropped malformed audio chunk
func (m *Metrics) RecordDecodeError() {
	decodeErrors.Inc()
}

// RecordInterruption records one handled barge-in
func (m *Metrics) RecordInterruption() {
	interruptions.Inc()
}

// RecordToolCall records one model tool invocation
func (m *Metrics) RecordToolCall(tool string) {
	toolCalls.WithLabelValues(tool).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
