package app

import (
	"context"
	"io"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/chat/orchestrator"
	"github.com/BigPharmacist/ChatApp/internal/observability"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
	"github.com/BigPharmacist/ChatApp/internal/platform/qdrant"
	"github.com/BigPharmacist/ChatApp/internal/rag/embedding"
)

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type instrumentedVectorStore struct {
	inner   qdrant.VectorStore
	metrics *observability.Metrics
}

func instrumentVectorStore(inner qdrant.VectorStore, m *observability.Metrics) qdrant.VectorStore {
	if inner == nil || m == nil {
		return inner
	}
	return &instrumentedVectorStore{inner: inner, metrics: m}
}

func (s *instrumentedVectorStore) CollectionExists(ctx context.Context, name string) bool {
	start := time.Now()
	ok := s.inner.CollectionExists(ctx, name)
	s.metrics.ObserveVectorStoreOperation("collection_exists", "success", time.Since(start))
	return ok
}

func (s *instrumentedVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	start := time.Now()
	err := s.inner.EnsureCollection(ctx, name, dim)
	s.observe("ensure_collection", err, start)
	return err
}

func (s *instrumentedVectorStore) Upsert(ctx context.Context, collection string, points []qdrant.Point) ([]string, error) {
	start := time.Now()
	ids, err := s.inner.Upsert(ctx, collection, points)
	s.observe("upsert", err, start)
	return ids, err
}

func (s *instrumentedVectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]any) ([]qdrant.SearchHit, error) {
	start := time.Now()
	hits, err := s.inner.Search(ctx, collection, vector, limit, filter)
	s.observe("search", err, start)
	return hits, err
}

func (s *instrumentedVectorStore) DeletePoints(ctx context.Context, collection string, ids []string, filter map[string]any) error {
	start := time.Now()
	err := s.inner.DeletePoints(ctx, collection, ids, filter)
	s.observe("delete_points", err, start)
	return err
}

func (s *instrumentedVectorStore) DeleteCollection(ctx context.Context, name string) error {
	start := time.Now()
	err := s.inner.DeleteCollection(ctx, name)
	s.observe("delete_collection", err, start)
	return err
}

func (s *instrumentedVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	start := time.Now()
	out, err := s.inner.ListCollections(ctx)
	s.observe("list_collections", err, start)
	return out, err
}

func (s *instrumentedVectorStore) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	start := time.Now()
	out, err := s.inner.CollectionInfo(ctx, name)
	s.observe("collection_info", err, start)
	return out, err
}

func (s *instrumentedVectorStore) Health(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Health(ctx)
	s.observe("health", err, start)
	return err
}

func (s *instrumentedVectorStore) observe(operation string, err error, start time.Time) {
	s.metrics.ObserveVectorStoreOperation(operation, statusOf(err), time.Since(start))
}

type instrumentedChatClient struct {
	inner   orchestrator.ChatClient
	metrics *observability.Metrics
}

func instrumentChatClient(inner orchestrator.ChatClient, m *observability.Metrics) orchestrator.ChatClient {
	if inner == nil || m == nil {
		return inner
	}
	return &instrumentedChatClient{inner: inner, metrics: m}
}

func (c *instrumentedChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	start := time.Now()
	resp, err := c.inner.CreateChatCompletion(ctx, req)
	var prompt, completion int
	if resp != nil && resp.Usage != nil {
		prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	c.metrics.ObserveModelCall(req.Model, modeLabel(req), statusOf(err), time.Since(start), prompt, completion)
	return resp, err
}

// StreamChatCompletion measures time to the first byte of the stream.
func (c *instrumentedChatClient) StreamChatCompletion(ctx context.Context, req openai.ChatRequest) (io.ReadCloser, error) {
	start := time.Now()
	body, err := c.inner.StreamChatCompletion(ctx, req)
	c.metrics.ObserveModelCall(req.Model, "stream", statusOf(err), time.Since(start), 0, 0)
	return body, err
}

func modeLabel(req openai.ChatRequest) string {
	if len(req.Tools) == 0 {
		return "no_tools"
	}
	if req.ToolChoice == "" {
		return string(orchestrator.ToolChoiceNone)
	}
	return req.ToolChoice
}

type instrumentedTools struct {
	inner   orchestrator.ToolExecutor
	metrics *observability.Metrics
}

func instrumentTools(inner orchestrator.ToolExecutor, m *observability.Metrics) orchestrator.ToolExecutor {
	if inner == nil || m == nil {
		return inner
	}
	return &instrumentedTools{inner: inner, metrics: m}
}

func (t *instrumentedTools) Definitions() []openai.Tool { return t.inner.Definitions() }

func (t *instrumentedTools) Execute(ctx context.Context, call openai.ToolCall) string {
	start := time.Now()
	out := t.inner.Execute(ctx, call)
	t.metrics.ObserveToolCall(call.Function.Name, time.Since(start))
	return out
}

type instrumentedEmbedder struct {
	inner   embedding.Embedder
	metrics *observability.Metrics
}

func instrumentEmbedder(inner embedding.Embedder, m *observability.Metrics) embedding.Embedder {
	if inner == nil || m == nil {
		return inner
	}
	return &instrumentedEmbedder{inner: inner, metrics: m}
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	out, err := e.inner.Embed(ctx, model, inputs)
	e.metrics.ObserveEmbedding(model, statusOf(err), len(inputs))
	return out, err
}

type instrumentedCache struct {
	inner   embedding.Cache
	metrics *observability.Metrics
}

func instrumentCache(inner embedding.Cache, m *observability.Metrics) embedding.Cache {
	if inner == nil || m == nil {
		return inner
	}
	return &instrumentedCache{inner: inner, metrics: m}
}

func (c *instrumentedCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	vec, ok, err := c.inner.Get(ctx, model, text)
	switch {
	case err != nil:
		c.metrics.ObserveEmbeddingCache("error")
	case ok:
		c.metrics.ObserveEmbeddingCache("hit")
	default:
		c.metrics.ObserveEmbeddingCache("miss")
	}
	return vec, ok, err
}

func (c *instrumentedCache) Set(ctx context.Context, model, text string, vec []float32) error {
	return c.inner.Set(ctx, model, text, vec)
}
