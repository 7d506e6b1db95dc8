package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BigPharmacist/ChatApp/internal/clients/redis"
	"github.com/BigPharmacist/ChatApp/internal/platform/brave"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
	"github.com/BigPharmacist/ChatApp/internal/platform/qdrant"
)

type Clients struct {
	OpenAI *openai.Client
	Brave  *brave.Client
	Qdrant qdrant.VectorStore
	// Redis is nil when REDIS_ADDR is unset or the server is unreachable.
	Redis *goredis.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	oa, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	out.OpenAI = oa
	out.Brave = brave.NewClient(log, cfg.Brave)

	vs, err := qdrant.NewVectorStore(log, cfg.Qdrant)
	if err != nil {
		return Clients{}, fmt.Errorf("init qdrant: %w", err)
	}
	out.Qdrant = vs

	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(log, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable; query embeddings will not be cached", "error", err)
		} else {
			out.Redis = rdb
		}
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
