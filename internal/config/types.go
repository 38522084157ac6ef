package config

import "time"

// Config represents the complete shopdelta configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	State    StateConfig    `yaml:"state"`
	Shopify  ShopifyConfig  `yaml:"shopify"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Sessions SessionsConfig `yaml:"sessions"`
	API      APIConfig      `yaml:"api"`
	Share    ShareConfig    `yaml:"share"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile       string `yaml:"log_file,omitempty"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb,omitempty"`
	LogMaxBackups int    `yaml:"log_max_backups,omitempty"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// ShopifyConfig holds the app credentials issued by the platform.
type ShopifyConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`

	// PreviousAPISecret keeps webhooks signed with a rotated-out secret
	// verifiable until the platform switches over.
	PreviousAPISecret string `yaml:"previous_api_secret,omitempty"`
}

// WebhooksConfig defines the webhook listener.
type WebhooksConfig struct {
	Listen          string        `yaml:"listen"`
	SignatureHeader string        `yaml:"signature_header"`
	TopicHeader     string        `yaml:"topic_header"`
	ShopHeader      string        `yaml:"shop_header"`
	MaxBodySize     string        `yaml:"max_body_size"`
	StepTimeout     time.Duration `yaml:"step_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`

	// RetryOnPartialFailure answers 500 when a cleanup step failed so the
	// platform redelivers. Off by default: a half-failing tenant would be
	// retried indefinitely.
	RetryOnPartialFailure bool `yaml:"retry_on_partial_failure"`
}

// Session store backends.
const (
	SessionBackendSQLite   = "sqlite"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

// SessionsConfig selects where platform sessions (access tokens) live.
type SessionsConfig struct {
	Backend     string `yaml:"backend"`
	RedisURL    string `yaml:"redis_url,omitempty"`
	PostgresURL string `yaml:"postgres_url,omitempty"`
	KeyPrefix   string `yaml:"key_prefix,omitempty"`
}

// APIConfig defines the embedded-app HTTP API.
type APIConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Listen             string        `yaml:"listen"`
	SessionTokenLeeway time.Duration `yaml:"session_token_leeway"`
	UnlockPerMinute    int           `yaml:"unlock_per_minute"`
	UnlockBurst        int           `yaml:"unlock_burst"`
}

// ShareConfig defines share link settings.
type ShareConfig struct {
	PasswordPepper string `yaml:"password_pepper"`
	PublicBaseURL  string `yaml:"public_base_url,omitempty"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:          "shopdelta",
			LogLevel:      "info",
			LogFormat:     "json",
			LogMaxSizeMB:  50,
			LogMaxBackups: 5,
		},
		State: StateConfig{
			Path: "./data/shopdelta.db",
		},
		Webhooks: WebhooksConfig{
			Listen:          "127.0.0.1:8081",
			SignatureHeader: "X-Shopify-Hmac-Sha256",
			TopicHeader:     "X-Shopify-Topic",
			ShopHeader:      "X-Shopify-Shop-Domain",
			MaxBodySize:     "1MB",
			StepTimeout:     5 * time.Second,
			RequestTimeout:  20 * time.Second,
		},
		Sessions: SessionsConfig{
			Backend:   SessionBackendSQLite,
			KeyPrefix: "shopdelta",
		},
		API: APIConfig{
			Enabled:            true,
			Listen:             "127.0.0.1:8080",
			SessionTokenLeeway: 5 * time.Second,
			UnlockPerMinute:    10,
			UnlockBurst:        5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
