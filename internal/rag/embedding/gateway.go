// Package embedding turns text into vectors through a remote embedding model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/platform/envutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

const (
	DefaultModel     = "BAAI/bge-multilingual-gemma2"
	DefaultDimension = 3584
)

// Embedder is the upstream call. It must return one vector per input in input order.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// Cache holds single-text embeddings. Failures are logged and bypassed.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Set(ctx context.Context, model, text string, vec []float32) error
}

type Config struct {
	Model     string
	Dimension int
	CacheTTL  time.Duration
}

func ResolveConfigFromEnv() Config {
	return Config{
		Model:     envutil.String(DefaultModel, "EMBEDDING_MODEL"),
		Dimension: envutil.Int("EMBEDDING_DIMENSION", DefaultDimension),
		CacheTTL:  envutil.Seconds("EMBED_CACHE_TTL_SECONDS", 24*time.Hour),
	}
}

// EmbeddingError means the whole batch failed; no vectors are returned with it.
type EmbeddingError struct {
	Model  string
	Inputs int
	Reason string
	Cause  error
}

func (e *EmbeddingError) Error() string {
	msg := fmt.Sprintf("embedding failed (model=%s inputs=%d)", e.Model, e.Inputs)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *EmbeddingError) Unwrap() error { return e.Cause }

type Gateway struct {
	log      *logger.Logger
	embedder Embedder
	model    string
	dim      int
	cache    Cache
}

type Option func(*Gateway)

// WithCache enables caching of single-text embeddings, which is what query lookups use.
func WithCache(c Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

func NewGateway(log *logger.Logger, embedder Embedder, cfg Config, opts ...Option) (*Gateway, error) {
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}
	g := &Gateway{
		log:      log.With("service", "EmbeddingGateway"),
		embedder: embedder,
		model:    cfg.Model,
		dim:      cfg.Dimension,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Gateway) Model() string  { return g.model }
func (g *Gateway) Dimension() int { return g.dim }

// Embed sends all texts in one upstream request. The result has the same
// length and order as texts; any failure fails the whole batch.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()
	vecs, err := g.embedder.Embed(ctx, g.model, texts)
	if err != nil {
		return nil, &EmbeddingError{Model: g.model, Inputs: len(texts), Cause: err}
	}
	if len(vecs) != len(texts) {
		return nil, &EmbeddingError{
			Model:  g.model,
			Inputs: len(texts),
			Reason: fmt.Sprintf("got %d vectors", len(vecs)),
		}
	}
	for i, v := range vecs {
		if len(v) != g.dim {
			return nil, &EmbeddingError{
				Model:  g.model,
				Inputs: len(texts),
				Reason: fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), g.dim),
			}
		}
	}
	g.log.Debug("Embedded batch", "inputs", len(texts), "duration_ms", time.Since(start).Milliseconds())
	return vecs, nil
}

// EmbedOne embeds a single text, consulting the cache when one is configured.
func (g *Gateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if g.cache != nil {
		vec, ok, err := g.cache.Get(ctx, g.model, text)
		switch {
		case err != nil:
			g.log.Warn("Embedding cache read failed", "error", err)
		case ok && len(vec) == g.dim:
			return vec, nil
		}
	}
	vecs, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, g.model, text, vecs[0]); err != nil {
			g.log.Warn("Embedding cache write failed", "error", err)
		}
	}
	return vecs[0], nil
}
