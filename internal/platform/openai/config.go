package openai

import (
	"errors"
	"strings"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/platform/envutil"
)

const DefaultBaseURL = "https://api.tokenfactory.nebius.com/v1"

// ErrMissingAPIKey is a configuration error; requests fail fast and are not retried.
var ErrMissingAPIKey = errors.New("model API key not configured (set OPENAI_API_KEY or NEBIUS_API_KEY)")

type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds non-streaming calls. Streams are bounded by the caller's context only.
	Timeout time.Duration
	// MaxRetries applies to embedding calls. Chat completions are never retried.
	MaxRetries int
}

func ResolveConfigFromEnv() Config {
	retries := envutil.Int("OPENAI_MAX_RETRIES", 2)
	if retries < 0 {
		retries = 0
	}
	return Config{
		APIKey:     envutil.String("", "OPENAI_API_KEY", "NEBIUS_API_KEY"),
		BaseURL:    strings.TrimRight(envutil.String(DefaultBaseURL, "OPENAI_BASE_URL"), "/"),
		Timeout:    envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 120*time.Second),
		MaxRetries: retries,
	}
}
