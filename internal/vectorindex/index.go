// Package vectorindex is an exact nearest-neighbor index over rule
// embeddings using squared Euclidean distance.
package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Hit is one search result. Index is the insertion position of the vector.
type Hit struct {
	Index    int
	Distance float64
}

// Index is a flat (brute-force) L2 index. Vectors are immutable once added.
type Index struct {
	mu      sync.RWMutex
	dims    int
	vectors [][]float32
}

// New creates an empty index for vectors of the given dimension.
func New(dims int) *Index {
	return &Index{dims: dims}
}

// Dimensions returns the vector dimension fixed at construction.
func (x *Index) Dimensions() int {
	return x.dims
}

// Len returns the number of indexed vectors.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Add appends vec and returns its position.
func (x *Index) Add(vec []float32) (int, error) {
	if len(vec) != x.dims {
		return 0, fmt.Errorf("embedding dimensions mismatch: expected %d, got %d", x.dims, len(vec))
	}
	cp := append([]float32(nil), vec...)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = append(x.vectors, cp)
	return len(x.vectors) - 1, nil
}

// Search returns the k nearest vectors to q in ascending distance order,
// or every vector when the index holds fewer than k. Equal distances keep
// insertion order.
func (x *Index) Search(ctx context.Context, q []float32, k int) ([]Hit, error) {
	if len(q) != x.dims {
		return nil, fmt.Errorf("query embedding dimensions mismatch: expected %d, got %d", x.dims, len(q))
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("vector search interrupted: %w", err)
			}
		}
		hits[i] = Hit{Index: i, Distance: squaredL2(q, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
