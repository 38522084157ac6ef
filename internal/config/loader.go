package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultFilename is looked up when a directory is passed to Load.
const DefaultFilename = "config.yaml"

// Load reads and parses configuration from a file or a directory holding config.yaml.
// Defaults are applied first, so the file only has to carry overrides.
func Load(configPath string) (*Config, error) {
	absPath, err := ResolvePath(configPath)
	if err != nil {
		return nil, err
	}

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML (after ${ENV} interpolation) on top of Defaults.
// It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	expanded := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

// ResolvePath turns a file or directory argument into an absolute config file path.
func ResolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, DefaultFilename)
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but %s not found: %s", DefaultFilename, absPath)
		}
	}
	return absPath, nil
}

// DiscoverConfigPath finds a config by checking standard locations.
// Priority order: $SHOPDELTA_CONFIG, ~/.config/shopdelta, /etc/shopdelta, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("SHOPDELTA_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "shopdelta")
		if _, err := os.Stat(filepath.Join(userConfigDir, DefaultFilename)); err == nil {
			return userConfigDir, nil
		}
	}

	if _, err := os.Stat(filepath.Join("/etc/shopdelta", DefaultFilename)); err == nil {
		return "/etc/shopdelta", nil
	}

	if _, err := os.Stat(DefaultFilename); err == nil {
		return DefaultFilename, nil
	}

	return "", fmt.Errorf("no config found (checked: $SHOPDELTA_CONFIG, ~/.config/shopdelta, /etc/shopdelta, ./config.yaml)")
}

func normalize(cfg *Config) {
	cfg.Service.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Service.LogLevel))
	cfg.Service.LogFormat = strings.ToLower(strings.TrimSpace(cfg.Service.LogFormat))
	cfg.Sessions.Backend = strings.ToLower(strings.TrimSpace(cfg.Sessions.Backend))
	if cfg.Sessions.Backend == "" {
		cfg.Sessions.Backend = SessionBackendSQLite
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// interpolateEnv replaces ${VAR} with environment values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Leave the placeholder; validation reports it if the field is required.
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if err := requireResolved("shopify.api_secret", cfg.Shopify.APISecret); err != nil {
		return err
	}
	if cfg.Shopify.PreviousAPISecret != "" {
		if err := requireResolved("shopify.previous_api_secret", cfg.Shopify.PreviousAPISecret); err != nil {
			return err
		}
	}

	if cfg.Webhooks.Listen == "" {
		return fmt.Errorf("webhooks.listen is required")
	}
	if cfg.Webhooks.SignatureHeader == "" {
		return fmt.Errorf("webhooks.signature_header is required")
	}
	if cfg.Webhooks.StepTimeout <= 0 {
		return fmt.Errorf("webhooks.step_timeout must be positive")
	}

	switch cfg.Sessions.Backend {
	case SessionBackendSQLite:
	case SessionBackendRedis:
		if err := requireResolved("sessions.redis_url", cfg.Sessions.RedisURL); err != nil {
			return err
		}
	case SessionBackendPostgres:
		if err := requireResolved("sessions.postgres_url", cfg.Sessions.PostgresURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("sessions.backend must be one of: sqlite, redis, postgres (got %q)", cfg.Sessions.Backend)
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when the API is enabled")
		}
		if err := requireResolved("shopify.api_key", cfg.Shopify.APIKey); err != nil {
			return err
		}
		if err := requireResolved("share.password_pepper", cfg.Share.PasswordPepper); err != nil {
			return err
		}
		if cfg.API.UnlockPerMinute <= 0 {
			return fmt.Errorf("api.unlock_per_minute must be positive")
		}
	}

	return nil
}

func requireResolved(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
