package qdrant

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/platform/envutil"
)

const (
	DefaultURL      = "http://localhost:6333"
	DefaultDistance = "Cosine"
	defaultTimeout  = 30 * time.Second
)

type Config struct {
	URL      string
	APIKey   string
	Distance string
	Timeout  time.Duration
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL ConfigErrorCode = "invalid_url"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", e.Value)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:      envutil.String(DefaultURL, "QDRANT_URL"),
		APIKey:   envutil.String("", "QDRANT_API_KEY"),
		Distance: DefaultDistance,
		Timeout:  envutil.Seconds("QDRANT_TIMEOUT_SECONDS", defaultTimeout),
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: raw, Cause: err}
	}
	return nil
}
