// Package live owns the lifecycle of one duplex voice session: connect and
// teardown, the event reducer that reacts to server traffic, the decode
// queue, playback scheduling, and the running transcript. One Controller
// serves one end user at a time.
package live

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zara-labs/live-gateway/internal/audio"
	"github.com/zara-labs/live-gateway/internal/capture"
	"github.com/zara-labs/live-gateway/internal/observability"
	"github.com/zara-labs/live-gateway/internal/playback"
	"github.com/zara-labs/live-gateway/internal/resilience"
	"github.com/zara-labs/live-gateway/internal/session"
)

// Status is the user-visible session state.
type Status int

const (
	StatusReady Status = iota
	StatusConnecting
	StatusOnline
	StatusSpeaking
	StatusDisconnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	case StatusSpeaking:
		return "speaking"
	case StatusDisconnected:
		return "disconnected"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// FailureKind tells the client how to react to a session failure.
type FailureKind int

const (
	// FailureCredential means the key or model was rejected; the user must
	// pick a different credential before retrying.
	FailureCredential FailureKind = iota

	// FailureNetwork is a transient transport problem; retrying may work.
	FailureNetwork

	// FailureInternal is everything else.
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureCredential:
		return "credential"
	case FailureNetwork:
		return "network"
	}
	return "internal"
}

// ClassifyFailure maps a session error to a FailureKind. The upstream signals
// a bad key or model id with a "Requested entity was not found" message.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureInternal
	}
	if strings.Contains(err.Error(), "Requested entity was not found") {
		return FailureCredential
	}
	if resilience.IsRetryableNetworkError(err) {
		return FailureNetwork
	}
	return FailureInternal
}

// Conn is the slice of the session connection the controller drives.
type Conn interface {
	SendAudio(pcm []byte) error
	SendToolResult(id, name string, response map[string]any) error
	Close() error
}

// Dialer opens a live session. Swapped for a fake in tests.
type Dialer func(ctx context.Context, cfg session.Config, cb session.Callbacks) (Conn, error)

// Events are the client-facing notifications. Any field may be nil.
type Events struct {
	OnStatus     func(Status)
	OnLevel      func(float64)
	OnTranscript func(index int, entry TranscriptEntry)
	OnMediaCard  func(MediaCard)
	OnFailure    func(kind FailureKind, err error)
}

// Config parameterizes a controller.
type Config struct {
	Session          session.Config
	Capture          capture.Config
	OutputSampleRate int
	Personalization  Personalization

	// Dialer, Clock, and Now default to their production implementations.
	Dialer Dialer
	Clock  playback.Clock
	Now    func() time.Time
}

// Controller runs the live session state machine. All methods are safe for
// concurrent use. Event callbacks from the session arrive on the connection's
// read goroutine and are reduced in arrival order.
type Controller struct {
	cfg    Config
	events Events
	logger zerolog.Logger

	scheduler  *playback.Scheduler
	transcript *TranscriptBuffer
	queue      *SerialQueue

	mu      sync.Mutex
	status  Status
	conn    Conn
	capture *capture.Loop
	metrics *observability.Metrics
	gen     int
}

// NewController creates a controller in Ready state. Played-back model audio
// is written to sink on the schedule the scheduler computes.
func NewController(cfg Config, sink playback.Sink, events Events, logger zerolog.Logger) *Controller {
	if cfg.OutputSampleRate <= 0 {
		cfg.OutputSampleRate = 24000
	}
	if cfg.Clock == nil {
		cfg.Clock = playback.NewClock()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Dialer == nil {
		cfg.Dialer = func(ctx context.Context, sc session.Config, cb session.Callbacks) (Conn, error) {
			return session.Connect(ctx, sc, cb, logger)
		}
	}

	c := &Controller{
		cfg:        cfg,
		events:     events,
		logger:     logger,
		transcript: NewTranscriptBuffer(),
		queue:      NewSerialQueue(),
		status:     StatusReady,
	}
	c.scheduler = playback.NewScheduler(cfg.Clock, sink)
	c.scheduler.SetSpeakingFunc(c.onSpeaking)
	return c
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Transcript returns the conversation log of the current session.
func (c *Controller) Transcript() []TranscriptEntry {
	return c.transcript.Entries()
}

// Toggle flips the session: an active or connecting session is torn down,
// otherwise a new one is opened.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	active := c.status == StatusConnecting || c.status == StatusOnline || c.status == StatusSpeaking
	c.mu.Unlock()

	if active {
		c.Teardown()
		return nil
	}
	return c.Connect(ctx)
}

// Connect opens a new live session. It is a no-op if one is already active.
// A dial or setup failure leaves the controller in Failed state with the
// failure classified for the client; the user can toggle again to retry.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusOnline || c.status == StatusSpeaking {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	myGen := c.gen
	c.status = StatusConnecting
	metrics := observability.NewSessionMetrics(observability.NewSessionID())
	c.metrics = metrics
	c.mu.Unlock()

	c.transcript.Reset()
	c.queue.Flush()
	c.scheduler.Reset()
	c.emitStatus(StatusConnecting)

	sc := c.cfg.Session
	if sc.SystemInstruction == "" {
		sc.SystemInstruction = BuildInstruction(c.cfg.Now(), c.cfg.Personalization)
	}
	if sc.Tools == nil {
		sc.Tools = SessionTools()
	}

	callbacks := session.Callbacks{
		OnOpen:  func() { c.onOpen(myGen) },
		OnEvent: func(ev session.Event) { c.handleEvent(myGen, ev) },
		OnError: func(err error) { c.onSessionError(myGen, err) },
		OnClose: func() { c.onSessionClose(myGen) },
	}

	metrics.RecordDialStart()
	conn, err := c.cfg.Dialer(ctx, sc, callbacks)
	if err != nil {
		kind := ClassifyFailure(err)
		c.logger.Error().Err(err).Str("kind", kind.String()).Msg("live session dial failed")
		metrics.RecordError(kind.String(), "session")

		c.mu.Lock()
		stale := c.gen != myGen
		if !stale {
			c.status = StatusFailed
		}
		c.mu.Unlock()

		if !stale {
			c.emitStatus(StatusFailed)
			if c.events.OnFailure != nil {
				c.events.OnFailure(kind, err)
			}
		}
		return err
	}

	loop := capture.NewLoop(c.cfg.Capture, c.logger,
		func(pcm []byte) {
			metrics.RecordAudioBytes("in", int64(len(pcm)))
			if err := conn.SendAudio(pcm); err != nil {
				c.logger.Warn().Err(err).Msg("failed to send audio block")
			}
		},
		func(level float64) {
			if c.events.OnLevel != nil {
				c.events.OnLevel(level)
			}
		},
	)

	c.mu.Lock()
	if c.gen != myGen {
		// Teardown won the race while we were dialing.
		c.mu.Unlock()
		loop.Stop()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.capture = loop
	c.mu.Unlock()

	metrics.RecordSessionStart()
	return nil
}

// PushAudio feeds one batch of device-rate microphone samples into the
// capture pipeline. Samples pushed while no session is active are dropped.
func (c *Controller) PushAudio(samples []float32) {
	c.mu.Lock()
	loop := c.capture
	c.mu.Unlock()

	if loop != nil {
		loop.Push(samples)
	}
}

// Teardown stops the session and returns the controller to Ready. It is
// idempotent and best-effort: every resource is released even if some step
// fails, and calling it with no active session is harmless.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.gen++
	conn := c.conn
	loop := c.capture
	metrics := c.metrics
	c.conn = nil
	c.capture = nil
	c.metrics = nil
	changed := c.status != StatusReady
	c.status = StatusReady
	c.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	c.queue.Flush()
	c.scheduler.Interrupt()
	if conn != nil {
		_ = conn.Close()
		if metrics != nil {
			metrics.RecordSessionEnd()
		}
	}
	if changed {
		c.emitStatus(StatusReady)
	}
}

// handleEvent is the reducer for incoming session events.
func (c *Controller) handleEvent(gen int, ev session.Event) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	metrics := c.metrics
	c.mu.Unlock()

	switch e := ev.(type) {
	case session.AudioChunkEvent:
		if metrics != nil {
			metrics.RecordAudioBytes("out", int64(len(e.Data)))
		}
		c.queue.Enqueue(func() {
			buf, err := audio.DecodeChunk(e.Data, c.cfg.OutputSampleRate, 1)
			if err != nil {
				// One bad chunk must not kill the session.
				c.logger.Warn().Err(err).Int("bytes", len(e.Data)).Msg("dropping malformed audio chunk")
				if metrics != nil {
					metrics.RecordDecodeError()
				}
				return
			}
			c.scheduler.Schedule(buf)
		})

	case session.TranscriptEvent:
		idx, entry := c.transcript.Append(e.Role, e.Text)
		if c.events.OnTranscript != nil {
			c.events.OnTranscript(idx, entry)
		}

	case session.ToolCallEvent:
		c.handleToolCall(conn, metrics, e)

	case session.InterruptedEvent:
		c.queue.Flush()
		c.scheduler.Interrupt()
		if metrics != nil {
			metrics.RecordInterruption()
		}
	}
}

func (c *Controller) handleToolCall(conn Conn, metrics *observability.Metrics, e session.ToolCallEvent) {
	if metrics != nil {
		metrics.RecordToolCall(e.Name)
	}

	if e.Name != ToolPlayMedia {
		c.logger.Warn().Str("tool", e.Name).Msg("unknown tool call")
		if conn != nil {
			_ = conn.SendToolResult(e.ID, e.Name, map[string]any{"error": "unknown tool"})
		}
		return
	}

	card := mediaCardFromArgs(e.Args)
	c.logger.Info().Str("platform", card.Platform).Str("query", card.Query).Msg("resolved media request")
	if c.events.OnMediaCard != nil {
		c.events.OnMediaCard(card)
	}
	if conn != nil {
		_ = conn.SendToolResult(e.ID, e.Name, map[string]any{"result": "ok"})
	}
}

func (c *Controller) onOpen(gen int) {
	c.mu.Lock()
	if c.gen != gen || c.status != StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.status = StatusOnline
	metrics := c.metrics
	c.mu.Unlock()

	if metrics != nil {
		metrics.RecordSessionOpen()
	}
	c.logger.Info().Msg("live session online")
	c.emitStatus(StatusOnline)
}

// onSpeaking tracks the scheduler's speaking flag into the status, but only
// while a session is up.
func (c *Controller) onSpeaking(speaking bool) {
	c.mu.Lock()
	var next Status
	changed := false
	if speaking && c.status == StatusOnline {
		c.status = StatusSpeaking
		next = StatusSpeaking
		changed = true
	} else if !speaking && c.status == StatusSpeaking {
		c.status = StatusOnline
		next = StatusOnline
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.emitStatus(next)
	}
}

// onSessionError handles a mid-session transport failure. There is no
// automatic reconnect; the session is cleaned up and the failure surfaced.
func (c *Controller) onSessionError(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	loop := c.capture
	metrics := c.metrics
	c.conn = nil
	c.capture = nil
	c.metrics = nil
	c.status = StatusFailed
	c.mu.Unlock()

	kind := ClassifyFailure(err)
	c.logger.Error().Err(err).Str("kind", kind.String()).Msg("live session error")

	if loop != nil {
		loop.Stop()
	}
	c.queue.Flush()
	c.scheduler.Interrupt()
	if conn != nil {
		_ = conn.Close()
	}
	if metrics != nil {
		metrics.RecordError(kind.String(), "session")
		metrics.RecordSessionEnd()
	}

	c.emitStatus(StatusFailed)
	if c.events.OnFailure != nil {
		c.events.OnFailure(kind, err)
	}
}

// onSessionClose handles the server ending the session. A close we initiated
// bumps the generation first, so only remote closes land here.
func (c *Controller) onSessionClose(gen int) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	loop := c.capture
	metrics := c.metrics
	c.conn = nil
	c.capture = nil
	c.metrics = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	c.logger.Info().Msg("live session closed by server")

	if loop != nil {
		loop.Stop()
	}
	c.queue.Flush()
	c.scheduler.Interrupt()
	if conn != nil {
		_ = conn.Close()
	}
	if metrics != nil {
		metrics.RecordSessionEnd()
	}

	c.emitStatus(StatusDisconnected)
}

func (c *Controller) emitStatus(s Status) {
	if c.events.OnStatus != nil {
		c.events.OnStatus(s)
	}
}
