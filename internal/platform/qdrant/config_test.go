package qdrant

import (
	"errors"
	"testing"
)

func TestResolveConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("QDRANT_URL", "")
	t.Setenv("QDRANT_API_KEY", "")
	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.URL != DefaultURL {
		t.Fatalf("URL: want=%q got=%q", DefaultURL, cfg.URL)
	}
	if cfg.Distance != DefaultDistance {
		t.Fatalf("Distance: want=%q got=%q", DefaultDistance, cfg.Distance)
	}
}

func TestValidateConfigRejectsRelativeURL(t *testing.T) {
	err := ValidateConfig(Config{URL: "qdrant:6333/x"})
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Code != ConfigErrorInvalidURL {
		t.Fatalf("want invalid_url got=%v", err)
	}
	err = ValidateConfig(Config{})
	if !errors.As(err, &ce) || ce.Code != ConfigErrorMissingURL {
		t.Fatalf("want missing_url got=%v", err)
	}
}
