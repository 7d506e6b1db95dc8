package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/platform/ctxutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/httpx"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

const maxErrorBodyBytes = 64 << 10

// HTTPError is a non-2xx answer from the provider. Body is the raw response text.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, httpx.Truncate(e.Body, 512))
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// Client talks to an OpenAI-compatible chat and embeddings API.
type Client struct {
	log          *logger.Logger
	cfg          Config
	httpClient   *http.Client
	streamClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	c := &Client{
		log:          log.With("service", "OpenAIClient"),
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
	if cfg.APIKey == "" {
		c.log.Warn("Model API key missing; chat and embedding requests will fail", "base_url", cfg.BaseURL)
	}
	return c, nil
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c != nil && c.cfg.APIKey != "" }

// CreateChatCompletion performs one non-streaming completion. It does not retry.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	var out ChatResponse
	if err := c.do(ctx, "/chat/completions", req, &out, 0); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamChatCompletion starts a streaming completion and hands back the raw
// SSE body. The caller must close it.
func (c *Client) StreamChatCompletion(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}
	req.Stream = true
	httpReq, err := c.newRequest(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw := httpx.ReadBody(resp.Body, maxErrorBodyBytes)
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp.Body, nil
}

// Embed returns one vector per input, in input order, from a single request.
// Retryable failures repeat the whole batch.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i, s := range inputs {
		if strings.TrimSpace(s) == "" {
			s = " "
		}
		clean[i] = s
	}
	var resp embeddingsResponse
	if err := c.do(ctx, "/embeddings", embeddingsRequest{Model: model, Input: clean}, &resp, c.cfg.MaxRetries); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = toFloat32(d.Embedding)
		}
	}
	// Some providers omit index; fall back to response order when the counts line up.
	if hasMissingEmbeddings(out) && len(resp.Data) == len(clean) {
		for i := range out {
			if len(out[i]) == 0 {
				out[i] = toFloat32(resp.Data[i].Embedding)
			}
		}
	}
	if hasMissingEmbeddings(out) {
		return nil, fmt.Errorf("embeddings response incomplete: requested=%d returned=%d model=%s", len(clean), len(resp.Data), model)
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("openai encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	req, err := c.newRequest(ctx, path, body)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *Client) do(ctx context.Context, path string, body any, out any, maxRetries int) error {
	if !c.Configured() {
		return ErrMissingAPIKey
	}
	ctx = ctxutil.Default(ctx)
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			c.log.Debug("OpenAI request completed", "path", path, "duration_ms", time.Since(start).Milliseconds())
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, httpx.Truncate(string(raw), 512))
			}
			return nil
		}
		if attempt >= maxRetries || !httpx.IsRetryableError(err) {
			return err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}

func hasMissingEmbeddings(v [][]float32) bool {
	for i := range v {
		if len(v[i]) == 0 {
			return true
		}
	}
	return false
}
