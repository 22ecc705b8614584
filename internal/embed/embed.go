// Package embed turns text into fixed-dimension vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable marks failures of the embedding service itself, as opposed
// to bad input. A run cannot continue past one.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder generates embedding vectors from text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	ServerURL  string
	Dimensions int
	CacheSize  int
	Redis      RedisConfig
}

// New builds the configured embedder wrapped in its caches. The Redis cache
// sits behind the in-process LRU so repeated texts never leave the process.
func New(cfg Config) (Embedder, error) {
	var base Embedder
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "ollama":
		e, err := NewOllama(cfg.ServerURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		base = e
	case "mock":
		base = NewMock(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want ollama or mock)", cfg.Provider)
	}

	if cfg.Redis.Enabled {
		rc, err := NewRedisCache(base, cfg.Redis)
		if err != nil {
			return nil, err
		}
		base = rc
	}
	if cfg.CacheSize > 0 {
		lc, err := NewLRU(base, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		base = lc
	}
	return base, nil
}

// RedisConfig configures the shared embedding cache.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}
