// Package session manages the lifecycle of one duplex streaming connection
// to the Gemini Live API: connect, stream audio up, dispatch server events
// down, and close. It knows the wire protocol; interpretation of events is
// the controller's job.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zara-labs/live-gateway/internal/audio"
	"github.com/zara-labs/live-gateway/internal/resilience"
)

// DefaultEndpoint is the Gemini Live BidiGenerateContent WebSocket endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// State tracks the connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Config describes one live session to open.
type Config struct {
	// Endpoint overrides the Gemini Live WebSocket URL (used in tests).
	Endpoint string

	// APIKey authenticates the connection.
	APIKey string

	// Model is the live-audio model identifier.
	Model string

	// Voice selects the prebuilt synthesis voice.
	Voice string

	// SystemInstruction is the assembled persona/context prompt. Opaque here.
	SystemInstruction string

	// Tools are the function declarations the model may invoke.
	Tools []Tool

	// InputSampleRate is stamped into each outbound media chunk's MIME type.
	InputSampleRate int

	// DialAttempts and DialBackoff bound retries of the initial dial only.
	// Transient network failures during the handshake are retried; once the
	// session is open there is no automatic reconnect.
	DialAttempts int
	DialBackoff  time.Duration
}

// Callbacks are invoked from the connection's read loop, in arrival order.
// They must not block for long; slow handlers delay every later event.
type Callbacks struct {
	OnOpen  func()
	OnEvent func(Event)
	OnError func(error)
	OnClose func()
}

// Connection is one duplex live session. All methods are safe for concurrent
// use; Send* after Close are silent no-ops so in-flight sends can race
// teardown without faulting.
type Connection struct {
	conn      *websocket.Conn
	callbacks Callbacks
	logger    zerolog.Logger
	mimeType  string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
	state     atomic.Int32
	done      chan struct{}
}

// Connect dials the live endpoint, sends the setup message, and starts the
// read loop. The returned connection is in Connecting state until the server
// acknowledges setup, at which point OnOpen fires and the state is Open.
func Connect(ctx context.Context, cfg Config, callbacks Callbacks, logger zerolog.Logger) (*Connection, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if cfg.InputSampleRate <= 0 {
		cfg.InputSampleRate = 16000
	}

	target := fmt.Sprintf("%s?key=%s", endpoint, url.QueryEscape(cfg.APIKey))

	var ws *websocket.Conn
	dial := func() error {
		var err error
		ws, _, err = websocket.DefaultDialer.DialContext(ctx, target, nil)
		return err
	}

	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.DialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	err := resilience.Retry(dial, &resilience.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    backoff,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}, resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, fmt.Errorf("failed to dial live endpoint: %w", err)
	}

	c := &Connection{
		conn:      ws,
		callbacks: callbacks,
		logger:    logger,
		mimeType:  fmt.Sprintf("audio/pcm;rate=%d", cfg.InputSampleRate),
		done:      make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	setup := setupEnvelope{Setup: &Setup{
		Model: cfg.Model,
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &SpeechConfig{
				VoiceConfig: &VoiceConfig{
					PrebuiltVoiceConfig: &PrebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
		Tools:                    cfg.Tools,
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &Content{
			Parts: []Part{{Text: cfg.SystemInstruction}},
		}
	}

	if err := c.writeJSON(setup); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("failed to send session setup: %w", err)
	}

	go c.readLoop()

	return c, nil
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// SendAudio transmits one encoded block of microphone PCM. It is a silent
// no-op once the connection is closed.
func (c *Connection) SendAudio(pcm []byte) error {
	if c.closed.Load() {
		return nil
	}
	msg := realtimeInputEnvelope{RealtimeInput: &realtimeInput{
		MediaChunks: []Blob{{
			MimeType: c.mimeType,
			Data:     audio.EncodeBase64(pcm),
		}},
	}}
	return c.writeJSON(msg)
}

// SendToolResult resolves one pending tool call by id.
func (c *Connection) SendToolResult(id, name string, response map[string]any) error {
	if c.closed.Load() {
		return nil
	}
	msg := toolResponseEnvelope{ToolResponse: &toolResponse{
		FunctionResponses: []FunctionResponse{{ID: id, Name: name, Response: response}},
	}}
	return c.writeJSON(msg)
}

// Close shuts the connection down. It is idempotent and safe to call in any
// state, including on a connection that already failed.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.State() != StateFailed {
			c.state.Store(int32(StateClosed))
		}
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}

// Done is closed when the read loop exits.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Connection) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.closed.Store(true)
				if c.State() != StateFailed {
					c.state.Store(int32(StateClosed))
				}
				if c.callbacks.OnClose != nil {
					c.callbacks.OnClose()
				}
				return
			}

			c.state.Store(int32(StateFailed))
			c.closed.Store(true)
			if c.callbacks.OnError != nil {
				c.callbacks.OnError(err)
			}
			return
		}

		var msg serverEnvelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error().Err(err).Msg("failed to parse server message")
			continue
		}

		c.dispatch(&msg)
	}
}

// dispatch converts one server message into zero or more events, preserving
// the order fields are handled in: tool calls, audio, transcripts, then the
// interruption signal.
func (c *Connection) dispatch(msg *serverEnvelope) {
	if msg.SetupComplete != nil {
		c.state.Store(int32(StateOpen))
		if c.callbacks.OnOpen != nil {
			c.callbacks.OnOpen()
		}
	}

	emit := c.callbacks.OnEvent
	if emit == nil {
		return
	}

	if msg.ToolCall != nil {
		for _, call := range msg.ToolCall.FunctionCalls {
			args := map[string]any{}
			if len(call.Args) > 0 {
				if err := json.Unmarshal(call.Args, &args); err != nil {
					c.logger.Error().Err(err).Str("tool", call.Name).Msg("failed to parse tool call args")
					continue
				}
			}
			emit(ToolCallEvent{ID: call.ID, Name: call.Name, Args: args})
		}
	}

	content := msg.ServerContent
	if content == nil {
		return
	}

	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := audio.DecodeBase64(part.InlineData.Data)
			if err != nil {
				// A bad chunk is not fatal; drop it and keep the session.
				c.logger.Warn().Err(err).Msg("dropping undecodable audio chunk")
				continue
			}
			emit(AudioChunkEvent{Data: data})
		}
	}

	if content.InputTranscription != nil && content.InputTranscription.Text != "" {
		emit(TranscriptEvent{Role: RoleUser, Text: content.InputTranscription.Text})
	}
	if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
		emit(TranscriptEvent{Role: RoleModel, Text: content.OutputTranscription.Text})
	}

	if content.Interrupted {
		emit(InterruptedEvent{})
	}
}
