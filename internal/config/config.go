package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the scribe gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Speech-to-text provider selection: deepgram or openai
	STTProvider string `envconfig:"STT_PROVIDER" default:"deepgram"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// OpenAI API configuration (note generation, and Whisper when selected)
	OpenAIAPIKey          string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIModel           string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAITranscribeModel string `envconfig:"OPENAI_TRANSCRIBE_MODEL" default:"whisper-1"`

	// Audio handling
	AudioMIMEType  string `envconfig:"AUDIO_MIME_TYPE" default:"audio/webm"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"41943040"` // 40MB

	// Session lifecycle
	FlushQueueSize         int `envconfig:"FLUSH_QUEUE_SIZE" default:"16"`         // Max flush units awaiting transcription per session
	SessionIdleTimeoutSecs int `envconfig:"SESSION_IDLE_TIMEOUT" default:"300"`    // Seconds before an abandoned session is reaped
	JanitorIntervalSecs    int `envconfig:"SESSION_JANITOR_INTERVAL" default:"60"` // Seconds between reaper sweeps

	// Kafka note-event publishing (disabled when no brokers are set)
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"encounter.notes"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
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

	switch strings.ToLower(cfg.STTProvider) {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY is required when STT_PROVIDER is deepgram")
		}
	case "openai":
		// OPENAI_API_KEY is already required for note generation.
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q: supported providers are deepgram, openai", cfg.STTProvider)
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return &cfg, nil
}

// SessionIdleTimeout returns the idle timeout as a duration.
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutSecs) * time.Second
}

// JanitorInterval returns the reaper sweep interval as a duration.
func (c *Config) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSecs) * time.Second
}

// KafkaEnabled reports whether note-event publishing is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
