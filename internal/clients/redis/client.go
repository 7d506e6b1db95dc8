package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BigPharmacist/ChatApp/internal/platform/envutil"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func ResolveConfigFromEnv() Config {
	return Config{
		Addr:     envutil.String("", "REDIS_ADDR"),
		Password: envutil.String("", "REDIS_PASSWORD"),
		DB:       envutil.Int("REDIS_DB", 0),
	}
}

// Enabled reports whether a Redis address is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// NewClient connects and pings; an unreachable server is an error.
func NewClient(log *logger.Logger, cfg Config) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info("Redis connected", "addr", cfg.Addr, "db", cfg.DB)
	return rdb, nil
}
