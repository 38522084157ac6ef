package webhook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CamDog38/ShopDelta2-sub001/internal/config"
)

// Config holds webhook server configuration.
type Config struct {
	Listen string

	// Secrets verify signatures; the first is current, later ones are
	// accepted during secret rotation.
	Secrets []string

	SignatureHeader string
	TopicHeader     string
	ShopHeader      string
	WebhookIDHeader string

	MaxBodySize           int64
	StepTimeout           time.Duration
	RequestTimeout        time.Duration
	RetryOnPartialFailure bool
}

// FromGlobalConfig converts the loaded configuration to webhook.Config.
func FromGlobalConfig(wc *config.WebhooksConfig, sc *config.ShopifyConfig) (Config, error) {
	if wc == nil || sc == nil {
		return Config{}, fmt.Errorf("webhooks config is nil")
	}
	if sc.APISecret == "" {
		return Config{}, fmt.Errorf("webhooks: shopify api_secret is not configured")
	}

	maxBodySize, err := parseMaxBodySize(wc.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("webhooks: invalid max_body_size %q: %w", wc.MaxBodySize, err)
	}

	secrets := []string{sc.APISecret}
	if sc.PreviousAPISecret != "" {
		secrets = append(secrets, sc.PreviousAPISecret)
	}

	return Config{
		Listen:                wc.Listen,
		Secrets:               secrets,
		SignatureHeader:       wc.SignatureHeader,
		TopicHeader:           wc.TopicHeader,
		ShopHeader:            wc.ShopHeader,
		MaxBodySize:           maxBodySize,
		StepTimeout:           wc.StepTimeout,
		RequestTimeout:        wc.RequestTimeout,
		RetryOnPartialFailure: wc.RetryOnPartialFailure,
	}, nil
}

// WithDefaults returns a copy with unset fields filled in.
func (c Config) WithDefaults() Config {
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.SignatureHeader == "" {
		c.SignatureHeader = "X-Shopify-Hmac-Sha256"
	}
	if c.TopicHeader == "" {
		c.TopicHeader = "X-Shopify-Topic"
	}
	if c.ShopHeader == "" {
		c.ShopHeader = "X-Shopify-Shop-Domain"
	}
	if c.WebhookIDHeader == "" {
		c.WebhookIDHeader = "X-Shopify-Webhook-Id"
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// parseMaxBodySize parses size strings like "1MB", "512KB", "1048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value { // overflow
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
