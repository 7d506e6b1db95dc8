package app

import (
	"fmt"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/chat/orchestrator"
	"github.com/BigPharmacist/ChatApp/internal/clients/redis"
	"github.com/BigPharmacist/ChatApp/internal/observability"
	"github.com/BigPharmacist/ChatApp/internal/platform/brave"
	"github.com/BigPharmacist/ChatApp/internal/platform/envutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
	"github.com/BigPharmacist/ChatApp/internal/platform/qdrant"
	"github.com/BigPharmacist/ChatApp/internal/rag/chunker"
	"github.com/BigPharmacist/ChatApp/internal/rag/embedding"
	"github.com/BigPharmacist/ChatApp/internal/rag/retrieval"
)

const serviceName = "chatapp"

type ChatConfig struct {
	DefaultModel     string
	SystemPrompt     string
	Timezone         string
	MaxTokens        int
	Temperature      float64
	MaxIterations    int
	CapabilitiesFile string
}

type Config struct {
	Port            string
	CORSOrigins     []string
	AuthJWTSecret   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsAddr     string

	OpenAI    openai.Config
	Brave     brave.Config
	Qdrant    qdrant.Config
	Redis     redis.Config
	Embedding embedding.Config
	Chunking  retrieval.Config
	Chat      ChatConfig
	Otel      observability.OtelConfig
}

func LoadConfig(log *logger.Logger) (Config, error) {
	qcfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("qdrant config: %w", err)
	}
	cfg := Config{
		Port:            envutil.String("8080", "PORT"),
		CORSOrigins:     envutil.List("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AuthJWTSecret:   envutil.String("", "AUTH_JWT_SECRET"),
		RequestTimeout:  envutil.Seconds("REQUEST_TIMEOUT_SECONDS", 300*time.Second),
		ShutdownTimeout: envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		MetricsEnabled:  envutil.Bool("METRICS_ENABLED", false),
		MetricsAddr:     envutil.String("", "METRICS_ADDR"),

		OpenAI:    openai.ResolveConfigFromEnv(),
		Brave:     brave.ResolveConfigFromEnv(),
		Qdrant:    qcfg,
		Redis:     redis.ResolveConfigFromEnv(),
		Embedding: embedding.ResolveConfigFromEnv(),
		Chunking: retrieval.Config{
			ChunkSize:    envutil.Int("CHUNK_SIZE", chunker.DefaultSize),
			ChunkOverlap: envutil.Int("CHUNK_OVERLAP", chunker.DefaultOverlap),
		},
		Chat: ChatConfig{
			DefaultModel:     envutil.String(orchestrator.DefaultModel, "CHAT_DEFAULT_MODEL"),
			SystemPrompt:     envutil.String(orchestrator.DefaultSystemPrompt, "CHAT_SYSTEM_PROMPT"),
			Timezone:         envutil.String(orchestrator.DefaultTimezone, "CHAT_TIMEZONE"),
			MaxTokens:        envutil.Int("CHAT_MAX_TOKENS", orchestrator.DefaultMaxTokens),
			Temperature:      envutil.Float("CHAT_TEMPERATURE", orchestrator.DefaultTemperature),
			MaxIterations:    envutil.Int("CHAT_MAX_TOOL_ITERATIONS", orchestrator.DefaultMaxIterations),
			CapabilitiesFile: envutil.String("", "MODEL_CAPABILITIES_FILE"),
		},
		Otel: observability.OtelConfigFromEnv(serviceName),
	}

	if cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return Config{}, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.Chunking.ChunkOverlap, cfg.Chunking.ChunkSize)
	}
	if cfg.Brave.APIKey == "" {
		log.Warn("BRAVE_API_KEY not set; web_search will report it as not configured")
	}
	return cfg, nil
}
