// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration. An optional rules file (see rules.go) overlays the
// transformation defaults.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	API     APIConfig
	Upload  UploadConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0,
	// disabled: a batch submission with backoff can outlive any fixed limit)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// TrustedProxies lists proxy IPs or CIDRs whose X-Real-IP and
	// X-Forwarded-For headers are honored. Empty means headers are ignored.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys lists accepted inbound X-API-Key values for the processing
	// endpoints. Empty disables inbound authentication.
	APIKeys []string `env:"SERVER_API_KEYS"`
}

// APIConfig holds settings for the downstream customer API.
type APIConfig struct {
	// BaseURL is the customer API base URL. Optional here because callers
	// may supply a per-run base URL; pre-flight validation rejects runs
	// that have neither.
	BaseURL string `env:"API_BASE_URL"`

	// Key is the bearer token sent as Authorization header when set.
	Key string `env:"API_KEY"`

	// Timeout is the per-request socket timeout (default: 30s)
	Timeout time.Duration `env:"API_TIMEOUT" default:"30s"`

	// MaxRetries is the retry attempts after the first try (default: 3)
	MaxRetries int `env:"API_MAX_RETRIES" default:"3"`

	// BaseDelay is the initial backoff delay (default: 1s)
	BaseDelay time.Duration `env:"API_BASE_DELAY" default:"1s"`

	// MaxDelay caps the backoff delay (default: 60s)
	MaxDelay time.Duration `env:"API_MAX_DELAY" default:"60s"`

	// BackoffFactor is the exponential backoff multiplier (default: 2.0)
	BackoffFactor float64 `env:"API_BACKOFF_FACTOR" default:"2.0"`

	// RetryStatusCodes lists HTTP statuses that force a retry regardless
	// of error classification (default: 429,500,502,503,504)
	RetryStatusCodes []int `env:"API_RETRY_STATUS_CODES" default:"429,500,502,503,504"`
}

// UploadConfig holds CSV processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// RulesFile is the path to an optional transformation rules overlay
	// (YAML, loaded via viper). Empty means defaults only.
	RulesFile string `env:"UPLOAD_RULES_FILE"`

	// RunRetention is how long finished runs stay retrievable in memory
	// (default: 30m)
	RunRetention time.Duration `env:"UPLOAD_RUN_RETENTION" default:"30m"`

	// MaxConcurrentRuns caps simultaneous processing runs (default: 5)
	MaxConcurrentRuns int `env:"UPLOAD_MAX_CONCURRENT_RUNS" default:"5"`

	// RunWaitTimeout is how long a request waits for a free run slot
	// before being rejected (default: 30s)
	RunWaitTimeout time.Duration `env:"UPLOAD_RUN_WAIT_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
