// Package doctor validates shopdelta configuration beyond what loading checks.
package doctor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/CamDog38/ShopDelta2-sub001/internal/config"
	"github.com/CamDog38/ShopDelta2-sub001/internal/webhook"
)

const minPepperLength = 16

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateShopify(r)
	d.validateWebhooks(r)
	d.validateSessions(r)
	d.validateAPIConfig(r)
	d.validateMetrics(r)
	d.warnMissingEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateServiceConfig checks state and log file settings.
func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}

	svc := d.cfg.Service
	if svc.LogFile == "" {
		return
	}
	if svc.LogMaxSizeMB <= 0 {
		d.addWarning(r, "service", "service.log_max_size_mb",
			"log_max_size_mb is not positive; the rotation default applies")
	}
	dir := filepath.Dir(svc.LogFile)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		d.addError(r, "service", "service.log_file",
			fmt.Sprintf("log directory %q is not a directory", dir))
	}
}

// validateShopify checks app credentials and secret rotation.
func (d *Doctor) validateShopify(r *Result) {
	sc := d.cfg.Shopify
	if sc.APISecret == "" {
		d.addError(r, "shopify", "shopify.api_secret", "api_secret is required to verify webhooks")
	}
	if sc.PreviousAPISecret != "" && sc.PreviousAPISecret == sc.APISecret {
		d.addWarning(r, "shopify", "shopify.previous_api_secret",
			"previous_api_secret equals api_secret; remove it once rotation is complete")
	}
	if d.cfg.API.Enabled && sc.APIKey == "" {
		d.addError(r, "shopify", "shopify.api_key", "api_key is required to verify session tokens")
	}
}

// validateWebhooks checks the listener, size limit and timeouts.
func (d *Doctor) validateWebhooks(r *Result) {
	wc := d.cfg.Webhooks
	if wc.Listen == "" {
		d.addError(r, "webhooks", "webhooks.listen", "webhooks.listen is required")
	}

	if d.cfg.Shopify.APISecret == "" {
		return
	}
	cfg, err := webhook.FromGlobalConfig(&d.cfg.Webhooks, &d.cfg.Shopify)
	if err != nil {
		d.addError(r, "webhooks", "webhooks.max_body_size", err.Error())
		return
	}
	cfg = cfg.WithDefaults()

	if cfg.StepTimeout >= cfg.RequestTimeout {
		d.addWarning(r, "webhooks", "webhooks.step_timeout",
			fmt.Sprintf("step_timeout %s is not shorter than request_timeout %s", cfg.StepTimeout, cfg.RequestTimeout))
	}
	if wc.RetryOnPartialFailure {
		d.addWarning(r, "webhooks", "webhooks.retry_on_partial_failure",
			"partial cleanup failures answer 500; a step that keeps failing is redelivered until the platform gives up")
	}
}

// validateSessions checks the session backend and its connection string.
func (d *Doctor) validateSessions(r *Result) {
	sc := d.cfg.Sessions
	switch sc.Backend {
	case config.SessionBackendSQLite, "":
	case config.SessionBackendRedis:
		if sc.RedisURL == "" {
			d.addError(r, "sessions", "sessions.redis_url", "redis_url is required for the redis backend")
		} else if _, err := redis.ParseURL(sc.RedisURL); err != nil {
			d.addError(r, "sessions", "sessions.redis_url", fmt.Sprintf("invalid redis_url: %v", err))
		}
	case config.SessionBackendPostgres:
		if sc.PostgresURL == "" {
			d.addError(r, "sessions", "sessions.postgres_url", "postgres_url is required for the postgres backend")
		} else if _, err := pgxpool.ParseConfig(sc.PostgresURL); err != nil {
			d.addError(r, "sessions", "sessions.postgres_url", fmt.Sprintf("invalid postgres_url: %v", err))
		}
	default:
		d.addError(r, "sessions", "sessions.backend",
			fmt.Sprintf("unknown session backend %q (expected sqlite, redis or postgres)", sc.Backend))
	}
}

// validateAPIConfig checks the embedded-app API and share link settings.
func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	api := d.cfg.API
	if api.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	} else if api.Listen == d.cfg.Webhooks.Listen {
		d.addError(r, "api", "api.listen", "api.listen must differ from webhooks.listen")
	}
	if api.UnlockBurst <= 0 {
		d.addWarning(r, "api", "api.unlock_burst", "unlock_burst is not positive; the default applies")
	}

	pepper := d.cfg.Share.PasswordPepper
	switch {
	case pepper == "":
		d.addError(r, "share", "share.password_pepper", "password_pepper is required when API is enabled")
	case len(pepper) < minPepperLength:
		d.addWarning(r, "share", "share.password_pepper",
			fmt.Sprintf("password_pepper is shorter than %d characters", minPepperLength))
	}

	if base := d.cfg.Share.PublicBaseURL; base != "" {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			d.addError(r, "share", "share.public_base_url",
				fmt.Sprintf("public_base_url %q must be an absolute http(s) URL", base))
		}
	}
}

// validateMetrics checks the metrics endpoint path.
func (d *Doctor) validateMetrics(r *Result) {
	if !d.cfg.Metrics.Enabled {
		return
	}
	if !strings.HasPrefix(d.cfg.Metrics.Path, "/") {
		d.addError(r, "metrics", "metrics.path", "metrics.path must start with /")
	}
	if !d.cfg.API.Enabled {
		d.addWarning(r, "metrics", "metrics.enabled", "metrics are served by the API listener, which is disabled")
	}
}

var envVarRe = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// warnMissingEnvVars warns about ${VAR} references left unresolved.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	fields := map[string]string{
		"shopify.api_key":             d.cfg.Shopify.APIKey,
		"shopify.api_secret":          d.cfg.Shopify.APISecret,
		"shopify.previous_api_secret": d.cfg.Shopify.PreviousAPISecret,
		"sessions.redis_url":          d.cfg.Sessions.RedisURL,
		"sessions.postgres_url":       d.cfg.Sessions.PostgresURL,
		"share.password_pepper":       d.cfg.Share.PasswordPepper,
	}
	for field, value := range fields {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			d.addWarning(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
