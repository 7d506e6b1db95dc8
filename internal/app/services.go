package app

import (
	"fmt"

	"github.com/BigPharmacist/ChatApp/internal/chat/orchestrator"
	"github.com/BigPharmacist/ChatApp/internal/chat/tools"
	"github.com/BigPharmacist/ChatApp/internal/clients/redis"
	"github.com/BigPharmacist/ChatApp/internal/observability"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/rag/embedding"
	"github.com/BigPharmacist/ChatApp/internal/rag/retrieval"
)

type Services struct {
	Embeddings   *embedding.Gateway
	Retrieval    *retrieval.Service
	Tools        *tools.Registry
	Orchestrator *orchestrator.Orchestrator
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var opts []embedding.Option
	if clients.Redis != nil {
		cache := redis.NewEmbeddingCache(log, clients.Redis, cfg.Embedding.CacheTTL)
		opts = append(opts, embedding.WithCache(instrumentCache(cache, metrics)))
	}
	gateway, err := embedding.NewGateway(log, instrumentEmbedder(clients.OpenAI, metrics), cfg.Embedding, opts...)
	if err != nil {
		return Services{}, fmt.Errorf("init embedding gateway: %w", err)
	}

	store := instrumentVectorStore(clients.Qdrant, metrics)
	rag := retrieval.NewService(log, store, gateway, cfg.Chunking)

	registry := tools.NewRegistry(log, tools.NewWebSearch(clients.Brave))

	caps, err := orchestrator.LoadCapabilities(orchestrator.DefaultCapabilities(), cfg.Chat.CapabilitiesFile)
	if err != nil {
		return Services{}, fmt.Errorf("load model capabilities: %w", err)
	}
	prompt, err := orchestrator.NewPromptBuilder(cfg.Chat.SystemPrompt, cfg.Chat.Timezone)
	if err != nil {
		return Services{}, fmt.Errorf("init prompt builder: %w", err)
	}
	orch := orchestrator.New(
		log,
		instrumentChatClient(clients.OpenAI, metrics),
		instrumentTools(registry, metrics),
		caps,
		prompt,
		orchestrator.Config{
			DefaultModel:  cfg.Chat.DefaultModel,
			MaxTokens:     cfg.Chat.MaxTokens,
			Temperature:   cfg.Chat.Temperature,
			MaxIterations: cfg.Chat.MaxIterations,
		},
	)

	return Services{
		Embeddings:   gateway,
		Retrieval:    rag,
		Tools:        registry,
		Orchestrator: orch,
	}, nil
}
