// Package config provides centralized configuration for the catalog
// service. Settings come from environment variables with sensible defaults
// and are validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	GenAI    GenAIConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 6m,
	// comfortably above the import timeout)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"6m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of pooled connections (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections kept open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime caps a connection's lifetime (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// MaxPayloadSize caps the accepted import payload in bytes (default: 10MB)
	MaxPayloadSize int64 `env:"IMPORT_MAX_PAYLOAD_SIZE" default:"10485760"`

	// ChunkSize is the number of rows per bulk statement (default: 50)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"50"`

	// UpdateConcurrency bounds in-flight per-row updates (default: 10)
	UpdateConcurrency int `env:"IMPORT_UPDATE_CONCURRENCY" default:"10"`

	// AugmentConcurrency is generation calls per sub-batch (default: 3)
	AugmentConcurrency int `env:"IMPORT_AUGMENT_CONCURRENCY" default:"3"`

	// Timeout is the wall-clock budget for one import batch (default: 5m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`

	// HistorySize is how many finished reports are kept in memory (default: 100)
	HistorySize int `env:"IMPORT_HISTORY_SIZE" default:"100"`
}

// GenAIConfig holds generative augmentation settings. Augmentation is
// disabled entirely when APIKey is empty.
type GenAIConfig struct {
	// APIKey authenticates against the OpenAI-compatible endpoint
	APIKey string `env:"GENAI_API_KEY"`

	// BaseURL overrides the endpoint for compatible providers
	BaseURL string `env:"GENAI_BASE_URL"`

	// Model is the chat completion model (default: gpt-4o-mini)
	Model string `env:"GENAI_MODEL" default:"gpt-4o-mini"`

	// Temperature for completions (default: 0.2)
	Temperature float64 `env:"GENAI_TEMPERATURE" default:"0.2"`

	// MaxTokens per completion (default: 1024)
	MaxTokens int64 `env:"GENAI_MAX_TOKENS" default:"1024"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Enabled reports whether a generative client should be constructed.
func (c *GenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
