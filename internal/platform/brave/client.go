package brave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/BigPharmacist/ChatApp/internal/platform/ctxutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/envutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/httpx"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://api.search.brave.com/res/v1/web/search"
	DefaultCount   = 5
)

var ErrMissingAPIKey = errors.New("BRAVE_API_KEY not configured")

type Config struct {
	APIKey     string
	BaseURL    string
	Count      int
	SearchLang string
	UILang     string
	Timeout    time.Duration
	// RateLimit is requests per second; zero disables client-side limiting.
	RateLimit float64
}

func ResolveConfigFromEnv() Config {
	return Config{
		APIKey:     envutil.String("", "BRAVE_API_KEY"),
		BaseURL:    envutil.String(DefaultBaseURL, "BRAVE_BASE_URL"),
		Count:      envutil.Int("BRAVE_RESULT_COUNT", DefaultCount),
		SearchLang: envutil.String("de", "BRAVE_SEARCH_LANG"),
		UILang:     envutil.String("de-DE", "BRAVE_UI_LANG"),
		Timeout:    envutil.Seconds("BRAVE_TIMEOUT_SECONDS", 15*time.Second),
		RateLimit:  envutil.Float("BRAVE_RATE_LIMIT_RPS", 0),
	}
}

type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// StatusError is a non-2xx answer from the search API.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return e.Status
	}
	return strconv.Itoa(e.StatusCode)
}

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

type Client struct {
	log     *logger.Logger
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(log *logger.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		log:  log.With("service", "BraveSearchClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// Search returns at most Config.Count web results for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	ctx = ctxutil.Default(ctx)
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(c.cfg.Count))
	if c.cfg.SearchLang != "" {
		params.Set("search_lang", c.cfg.SearchLang)
	}
	if c.cfg.UILang != "" {
		params.Set("ui_lang", c.cfg.UILang)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := httpx.ReadBody(resp.Body, 1024)
		c.log.Warn("Search request rejected", "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload struct {
		Web struct {
			Results []Result `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	results := payload.Web.Results
	if len(results) > c.cfg.Count {
		results = results[:c.cfg.Count]
	}
	c.log.Debug("Search completed", "results", len(results), "duration_ms", time.Since(start).Milliseconds())
	return results, nil
}
