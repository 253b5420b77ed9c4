// Package config provides configuration management for the service catalog.
package config

import (
	"time"
)

// Config is the root configuration for the service catalog.
type Config struct {
	// Storage selects and configures the persistence backend.
	Storage StorageConfig `mapstructure:"storage" json:"storage" yaml:"storage" toml:"storage"`
	// Server configures the HTTP API.
	Server ServerConfig `mapstructure:"server" json:"server" yaml:"server" toml:"server"`
	// Workflow tunes the approval and publication workflow.
	Workflow WorkflowConfig `mapstructure:"workflow" json:"workflow" yaml:"workflow" toml:"workflow"`
	// Log configures logging.
	Log LogConfig `mapstructure:"log" json:"log" yaml:"log" toml:"log"`
	// Webhooks receive domain events such as approvals and publications.
	Webhooks []WebhookConfig `mapstructure:"webhooks" json:"webhooks,omitempty" yaml:"webhooks,omitempty" toml:"webhooks,omitempty"`
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver" toml:"driver"`
	// DSN is the data source name. For sqlite it overrides Path.
	DSN string `mapstructure:"dsn" json:"dsn,omitempty" yaml:"dsn,omitempty" toml:"dsn,omitempty"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	// MaxOpenConns caps the connection pool (0 = driver default).
	MaxOpenConns int `mapstructure:"max_open_conns" json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	// ConnectAttempts is how many times the initial ping is tried.
	ConnectAttempts int `mapstructure:"connect_attempts" json:"connect_attempts" yaml:"connect_attempts" toml:"connect_attempts"`
	// ConnectBackoff is the initial delay between connection attempts.
	ConnectBackoff time.Duration `mapstructure:"connect_backoff" json:"connect_backoff" yaml:"connect_backoff" toml:"connect_backoff"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Address is the listen address (default ":8080").
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins,omitempty" yaml:"cors_origins,omitempty" toml:"cors_origins,omitempty"`
	// RateLimit throttles requests per API key.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	// APIKeys maps API keys to actors.
	APIKeys []APIKeyConfig `mapstructure:"api_keys" json:"api_keys,omitempty" yaml:"api_keys,omitempty" toml:"api_keys,omitempty"`
}

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	// Rate is the number of requests allowed per Interval.
	Rate int `mapstructure:"rate" json:"rate" yaml:"rate" toml:"rate"`
	// Burst is the bucket size.
	Burst    int           `mapstructure:"burst" json:"burst" yaml:"burst" toml:"burst"`
	Interval time.Duration `mapstructure:"interval" json:"interval" yaml:"interval" toml:"interval"`
}

// APIKeyConfig binds an API key to an actor.
type APIKeyConfig struct {
	// Key is the secret presented in X-API-Key or as a bearer token.
	// ${VAR} references are expanded at load time.
	Key string `mapstructure:"key" json:"key" yaml:"key" toml:"key"`
	// ActorID is the user id the key acts as.
	ActorID int64 `mapstructure:"actor_id" json:"actor_id" yaml:"actor_id" toml:"actor_id"`
	// Role is publisher or admin.
	Role string `mapstructure:"role" json:"role" yaml:"role" toml:"role"`
	// Name is a label used in logs.
	Name string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
}

// WorkflowConfig tunes the workflow.
type WorkflowConfig struct {
	// MaxEndpointSuffix bounds the collision suffix search.
	MaxEndpointSuffix int `mapstructure:"max_endpoint_suffix" json:"max_endpoint_suffix" yaml:"max_endpoint_suffix" toml:"max_endpoint_suffix"`
	// RetryAttempts is how many times a conflicting write transaction is tried.
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts" yaml:"retry_attempts" toml:"retry_attempts"`
	// RetryInitialDelay is the first backoff delay.
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay" json:"retry_initial_delay" yaml:"retry_initial_delay" toml:"retry_initial_delay"`
	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay" json:"retry_max_delay" yaml:"retry_max_delay" toml:"retry_max_delay"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level" json:"level" yaml:"level" toml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" json:"format" yaml:"format" toml:"format"`
}

// WebhookConfig configures an endpoint that receives domain events.
type WebhookConfig struct {
	// Name is a friendly name used in logs.
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`
	// URL is the endpoint events are POSTed to.
	URL string `mapstructure:"url" json:"url" yaml:"url" toml:"url"`
	// Secret signs payloads with HMAC-SHA256 in X-Catalog-Signature.
	// ${VAR} references are expanded at load time.
	Secret string `mapstructure:"secret" json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret,omitempty"`
	// Events lists event names to send; empty means all. "service.*"
	// matches every service event.
	Events []string `mapstructure:"events" json:"events,omitempty" yaml:"events,omitempty" toml:"events,omitempty"`
	// Headers are added to every delivery.
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
	// Timeout bounds one delivery attempt (default 10s).
	Timeout time.Duration `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	// RetryCount is the number of retries after a failed attempt (default 3).
	RetryCount int `mapstructure:"retry_count" json:"retry_count,omitempty" yaml:"retry_count,omitempty" toml:"retry_count,omitempty"`
	// RetryDelay is the initial delay between attempts (default 1s).
	RetryDelay time.Duration `mapstructure:"retry_delay" json:"retry_delay,omitempty" yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty"`
	// Enabled turns the webhook off when false (default true).
	Enabled *bool `mapstructure:"enabled" json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
}

// IsEnabled reports whether the webhook is active.
func (w *WebhookConfig) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:          DriverSQLite,
			Path:            "catalog.db",
			ConnectAttempts: 5,
			ConnectBackoff:  200 * time.Millisecond,
		},
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Rate:     20,
				Burst:    40,
				Interval: time.Second,
			},
		},
		Workflow: WorkflowConfig{
			MaxEndpointSuffix: 10000,
			RetryAttempts:     3,
			RetryInitialDelay: 25 * time.Millisecond,
			RetryMaxDelay:     500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigFileNames to search for.
var ConfigFileNames = []string{
	".catalog",
}

// ConfigFileExtensions supported by Viper.
var ConfigFileExtensions = []string{
	"yaml",
	"yml",
	"json",
	"toml",
}
