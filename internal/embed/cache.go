package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU memoizes embeddings in process.
type LRU struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewLRU wraps next with an LRU of the given size.
func NewLRU(next Embedder, size int) (*LRU, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &LRU{next: next, cache: c}, nil
}

// Embed returns a cached vector or computes and stores one.
func (l *LRU) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(l.next.Model(), text)
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	v, err := l.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, v)
	return v, nil
}

// Model returns the wrapped model name.
func (l *LRU) Model() string {
	return l.next.Model()
}

// Close closes the wrapped embedder if it holds resources.
func (l *LRU) Close() error {
	if c, ok := l.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
