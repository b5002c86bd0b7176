package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the live gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service. Used for logging the WebSocket
	// endpoint; clients connect to wss://<this-host>/streams/live.
	// Optional; if unset, logs ws://localhost:PORT/streams/live.
	LiveGatewayURL string `envconfig:"LIVE_GATEWAY_URL" default:""`

	// Gemini Live API configuration
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY" required:"true" validate:"required"`
	GeminiModel    string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-native-audio-preview-12-2025"`
	GeminiVoice    string `envconfig:"GEMINI_VOICE" default:"Zephyr"`
	GeminiEndpoint string `envconfig:"GEMINI_ENDPOINT" default:""` // Override for tests; empty uses the production endpoint

	// Audio processing configuration
	InputSampleRate  int `envconfig:"INPUT_SAMPLE_RATE" default:"16000" validate:"gt=0"`  // Transport rate for microphone audio
	OutputSampleRate int `envconfig:"OUTPUT_SAMPLE_RATE" default:"24000" validate:"gt=0"` // Rate of model speech audio
	CaptureBlockSize int `envconfig:"CAPTURE_BLOCK_SIZE" default:"2048" validate:"gt=0"`  // Device-rate samples per transport frame
	LevelStride      int `envconfig:"LEVEL_STRIDE" default:"16" validate:"gt=0"`          // Subsampling stride for the level meter

	// Resilience configuration
	ConnectRetryAttempts int `envconfig:"CONNECT_RETRY_ATTEMPTS" default:"3" validate:"gte=1"` // Dial attempts before giving up
	ConnectRetryBackoff  int `envconfig:"CONNECT_RETRY_BACKOFF" default:"100"`                 // Initial dial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

var validate = validator.New()

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
