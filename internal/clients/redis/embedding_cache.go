package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

const embeddingKeyPrefix = "chatapp:emb:"

// EmbeddingCache stores query embeddings keyed by model and text.
type EmbeddingCache struct {
	log *logger.Logger
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewEmbeddingCache(log *logger.Logger, rdb goredis.Cmdable, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{
		log: log.With("service", "RedisEmbeddingCache"),
		rdb: rdb,
		ttl: ttl,
	}
}

func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	raw, err := c.rdb.Get(ctx, embeddingKey(model, text)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *EmbeddingCache) Set(ctx context.Context, model, text string, vec []float32) error {
	raw, err := encodeVector(vec)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, embeddingKey(model, text), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func embeddingKey(model, text string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(model))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return embeddingKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func encodeVector(vec []float32) ([]byte, error) {
	raw, err := msgpack.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return raw, nil
}

func decodeVector(raw []byte) ([]float32, error) {
	var vec []float32
	if err := msgpack.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("decode embedding: empty vector")
	}
	return vec, nil
}
