package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"alertlens/internal/logger"
)

// RedisCache shares embeddings between runs and hosts. Cache failures are
// logged and bypassed; only the wrapped embedder can fail a lookup.
type RedisCache struct {
	next   Embedder
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps next with a Redis-backed cache and checks connectivity.
func NewRedisCache(next Embedder, cfg RedisConfig) (*RedisCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "alertlens:embedding"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis embedding cache: %w", err)
	}

	return &RedisCache{next: next, client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), ttl: cfg.TTL}, nil
}

// Embed returns a cached vector or computes and stores one.
func (c *RedisCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.prefix + ":" + cacheKey(c.next.Model(), text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if v, derr := DecodeVector(raw); derr == nil {
			return v, nil
		}
		logger.Warnf("Discarding corrupt cached embedding %s", key)
	case !errors.Is(err, redis.Nil):
		logger.Warnf("Embedding cache read failed: %v", err)
	}

	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, EncodeVector(v), c.ttl).Err(); err != nil {
		logger.Warnf("Embedding cache write failed: %v", err)
	}
	return v, nil
}

// Model returns the wrapped model name.
func (c *RedisCache) Model() string {
	return c.next.Model()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
