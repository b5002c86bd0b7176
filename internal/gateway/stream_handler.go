// Package gateway exposes the browser-facing WebSocket surface. Each client
// connection owns one live.Controller; JSON frames carry microphone audio up
// and status, transcript, and playback events down.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zara-labs/live-gateway/internal/audio"
	"github.com/zara-labs/live-gateway/internal/capture"
	"github.com/zara-labs/live-gateway/internal/config"
	"github.com/zara-labs/live-gateway/internal/live"
	"github.com/zara-labs/live-gateway/internal/observability"
	"github.com/zara-labs/live-gateway/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin against the app's allowed hosts.
		// For now, allow all origins (development only)
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ClientMessage is a frame from the browser.
type ClientMessage struct {
	Event           string           `json:"event"` // "start", "media", or "stop"
	DeviceRate      int              `json:"deviceRate,omitempty"`
	Payload         string           `json:"payload,omitempty"` // base64 16-bit LE PCM at deviceRate
	Personalization *Personalization `json:"personalization,omitempty"`
}

// Personalization mirrors the per-user context the client may attach to a
// session start.
type Personalization struct {
	Nickname string `json:"nickname,omitempty"`
	Memory   string `json:"memory,omitempty"`
	Persona  *struct {
		Name   string `json:"name"`
		Prompt string `json:"prompt"`
	} `json:"persona,omitempty"`
}

// ServerMessage is a frame to the browser.
type ServerMessage struct {
	Event   string          `json:"event"`
	Status  string          `json:"status,omitempty"`
	Level   float64         `json:"level,omitempty"`
	Index   int             `json:"index,omitempty"`
	Role    string          `json:"role,omitempty"`
	Text    string          `json:"text,omitempty"`
	Payload string          `json:"payload,omitempty"` // base64 16-bit LE PCM at the output rate
	StartAt float64         `json:"startAt,omitempty"`
	Card    *live.MediaCard `json:"card,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Message string          `json:"message,omitempty"`
}

// LiveStream is one browser connection and its voice session. It doubles as
// the playback sink: scheduled model speech is forwarded to the client with
// its absolute start time so the browser can queue it on its own clock.
type LiveStream struct {
	conn   *websocket.Conn
	cfg    *config.Config
	logger zerolog.Logger

	out       chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	ctrl *live.Controller
}

// NewLiveStream wraps an upgraded client connection.
func NewLiveStream(conn *websocket.Conn, cfg *config.Config) *LiveStream {
	sessionID := observability.NewSessionID()
	return &LiveStream{
		conn:   conn,
		cfg:    cfg,
		logger: observability.WithSessionID(sessionID),
		out:    make(chan ServerMessage, 256),
		done:   make(chan struct{}),
	}
}

// HandleLiveWS is the entry point for client WebSocket connections.
func HandleLiveWS(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("failed to upgrade connection")
			return
		}
		defer conn.Close()

		stream := NewLiveStream(conn, cfg)
		stream.logger.Info().Str("remote", r.RemoteAddr).Msg("client stream connected")

		go stream.writeLoop()
		stream.readLoop()
		stream.close()
	}
}

// Write implements playback.Sink. The scheduler calls it when a chunk of
// model speech reaches its start time.
func (s *LiveStream) Write(buf *audio.Buffer, startAt float64) {
	s.send(ServerMessage{
		Event:   "audio",
		Payload: audio.EncodeBase64(audio.FloatToInt16LE(buf.Samples)),
		StartAt: startAt,
	})
}

// Flush implements playback.Sink. It tells the client to drop anything it
// has not played yet.
func (s *LiveStream) Flush() {
	s.send(ServerMessage{Event: "interrupted"})
}

func (s *LiveStream) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("client stream read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("failed to parse client message")
			continue
		}

		switch msg.Event {
		case "start":
			s.handleStart(&msg)
		case "media":
			s.handleMedia(&msg)
		case "stop":
			s.handleStop()
		default:
			s.logger.Warn().Str("event", msg.Event).Msg("unknown client event")
		}
	}
}

func (s *LiveStream) handleStart(msg *ClientMessage) {
	s.mu.Lock()
	if s.ctrl == nil {
		s.ctrl = s.newController(msg)
	}
	ctrl := s.ctrl
	s.mu.Unlock()

	// Dialing can block through retries; don't stall the read loop.
	go func() {
		if err := ctrl.Connect(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("session connect failed")
		}
	}()
}

func (s *LiveStream) handleMedia(msg *ClientMessage) {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	if ctrl == nil {
		return
	}

	pcm, err := audio.DecodeBase64(msg.Payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping undecodable media frame")
		return
	}
	ctrl.PushAudio(audio.Int16LEToFloat(pcm))
}

func (s *LiveStream) handleStop() {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	if ctrl != nil {
		ctrl.Teardown()
	}
}

func (s *LiveStream) newController(msg *ClientMessage) *live.Controller {
	deviceRate := msg.DeviceRate
	if deviceRate <= 0 {
		deviceRate = s.cfg.InputSampleRate
	}

	var p live.Personalization
	if msg.Personalization != nil {
		p.Nickname = msg.Personalization.Nickname
		p.Memory = msg.Personalization.Memory
		if msg.Personalization.Persona != nil {
			p.Persona = &live.Persona{
				Name:   msg.Personalization.Persona.Name,
				Prompt: msg.Personalization.Persona.Prompt,
			}
		}
	}

	liveCfg := live.Config{
		Session: session.Config{
			Endpoint:        s.cfg.GeminiEndpoint,
			APIKey:          s.cfg.GeminiAPIKey,
			Model:           s.cfg.GeminiModel,
			Voice:           s.cfg.GeminiVoice,
			InputSampleRate: s.cfg.InputSampleRate,
			DialAttempts:    s.cfg.ConnectRetryAttempts,
			DialBackoff:     time.Duration(s.cfg.ConnectRetryBackoff) * time.Millisecond,
		},
		Capture: capture.Config{
			DeviceRate:  deviceRate,
			TargetRate:  s.cfg.InputSampleRate,
			BlockSize:   s.cfg.CaptureBlockSize,
			LevelStride: s.cfg.LevelStride,
		},
		OutputSampleRate: s.cfg.OutputSampleRate,
		Personalization:  p,
	}

	events := live.Events{
		OnStatus: func(status live.Status) {
			s.send(ServerMessage{Event: "status", Status: status.String()})
		},
		OnLevel: func(level float64) {
			s.send(ServerMessage{Event: "level", Level: level})
		},
		OnTranscript: func(index int, entry live.TranscriptEntry) {
			s.send(ServerMessage{Event: "transcript", Index: index, Role: string(entry.Role), Text: entry.Text})
		},
		OnMediaCard: func(card live.MediaCard) {
			s.send(ServerMessage{Event: "media_card", Card: &card})
		},
		OnFailure: func(kind live.FailureKind, err error) {
			s.send(ServerMessage{Event: "error", Kind: kind.String(), Message: err.Error()})
		},
	}

	return live.NewController(liveCfg, s, events, s.logger)
}

// send queues one frame for the writer. A slow client sheds frames instead of
// stalling the session.
func (s *LiveStream) send(msg ServerMessage) {
	select {
	case s.out <- msg:
	case <-s.done:
	default:
		s.logger.Warn().Str("event", msg.Event).Msg("client send buffer full, dropping frame")
	}
}

func (s *LiveStream) writeLoop() {
	for {
		select {
		case msg := <-s.out:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn().Err(err).Msg("client stream write error")
				return
			}
		case <-s.done:
			return
		}
	}
}

// close tears down the session and releases the writer. Idempotent.
func (s *LiveStream) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		ctrl := s.ctrl
		s.mu.Unlock()
		if ctrl != nil {
			ctrl.Teardown()
		}
		close(s.done)
		s.logger.Info().Msg("client stream closed")
	})
}
