package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

// Metrics is an in-process Prometheus registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *GaugeVec
	modelRequests *CounterVec
	modelLatency  *HistogramVec
	modelTokens   *CounterVec
	toolCalls     *CounterVec
	toolLatency   *HistogramVec
	embedRequests *CounterVec
	embedInputs   *CounterVec
	embedCache    *CounterVec
	storeOps      *CounterVec
	storeLatency  *HistogramVec
	redisUp       *GaugeVec

	collectors []collector
}

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// NewMetrics returns nil when disabled so callers can pass it around freely.
func NewMetrics(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	m := &Metrics{
		apiRequests:   NewCounterVec("chatapp_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:    NewHistogramVec("chatapp_api_request_duration_seconds", "API request latency by method/route/status.", []string{"method", "route", "status"}, latencyBuckets),
		apiInflight:   NewGaugeVec("chatapp_api_inflight_requests", "In-flight API requests.", nil),
		modelRequests: NewCounterVec("chatapp_model_requests_total", "Chat completion calls by model/mode/status.", []string{"model", "mode", "status"}),
		modelLatency:  NewHistogramVec("chatapp_model_request_duration_seconds", "Chat completion latency by model/mode.", []string{"model", "mode"}, latencyBuckets),
		modelTokens:   NewCounterVec("chatapp_model_tokens_total", "Tokens reported by the model provider.", []string{"model", "kind"}),
		toolCalls:     NewCounterVec("chatapp_tool_calls_total", "Tool executions by tool.", []string{"tool"}),
		toolLatency:   NewHistogramVec("chatapp_tool_duration_seconds", "Tool execution latency.", []string{"tool"}, latencyBuckets),
		embedRequests: NewCounterVec("chatapp_embedding_requests_total", "Embedding calls by model/status.", []string{"model", "status"}),
		embedInputs:   NewCounterVec("chatapp_embedding_inputs_total", "Texts sent for embedding.", []string{"model"}),
		embedCache:    NewCounterVec("chatapp_embedding_cache_total", "Query embedding cache lookups by result.", []string{"result"}),
		storeOps:      NewCounterVec("chatapp_vector_store_operations_total", "Vector store operations by operation/status.", []string{"operation", "status"}),
		storeLatency:  NewHistogramVec("chatapp_vector_store_operation_duration_seconds", "Vector store operation latency.", []string{"operation"}, latencyBuckets),
		redisUp:       NewGaugeVec("chatapp_redis_up", "1 when the last redis ping succeeded.", nil),
	}
	m.collectors = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.modelRequests, m.modelLatency, m.modelTokens,
		m.toolCalls, m.toolLatency,
		m.embedRequests, m.embedInputs, m.embedCache,
		m.storeOps, m.storeLatency,
		m.redisUp,
	}
	return m
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

// StartServer serves /metrics on its own address until ctx ends.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || strings.TrimSpace(addr) == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) APIInflight(delta float64) {
	if m != nil {
		m.apiInflight.Add(delta)
	}
}

// ObserveModelCall records one chat completion. mode is the tool choice sent,
// "no_tools", or "stream" for the streamed re-issue.
func (m *Metrics) ObserveModelCall(model, mode, status string, dur time.Duration, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.modelRequests.Inc(model, mode, status)
	m.modelLatency.Observe(dur.Seconds(), model, mode)
	m.modelTokens.Add(float64(promptTokens), model, "prompt")
	m.modelTokens.Add(float64(completionTokens), model, "completion")
}

func (m *Metrics) ObserveToolCall(tool string, dur time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.Inc(tool)
	m.toolLatency.Observe(dur.Seconds(), tool)
}

func (m *Metrics) ObserveEmbedding(model, status string, inputs int) {
	if m == nil {
		return
	}
	m.embedRequests.Inc(model, status)
	m.embedInputs.Add(float64(inputs), model)
}

// ObserveEmbeddingCache records "hit", "miss" or "error".
func (m *Metrics) ObserveEmbeddingCache(result string) {
	if m != nil {
		m.embedCache.Inc(result)
	}
}

func (m *Metrics) ObserveVectorStoreOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Inc(operation, status)
	m.storeLatency.Observe(dur.Seconds(), operation)
}

// StartRedisCollector pings rdb every interval and exports the result.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.Cmdable, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					log.Warn("metrics: redis ping failed", "error", err)
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
