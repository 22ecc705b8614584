package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

const defaultMockDimensions = 64

// Mock derives vectors from token hashes, so texts sharing words land close
// together. It needs no model and is deterministic, which makes it useful
// offline and in tests.
type Mock struct {
	dims int
}

// NewMock creates a deterministic embedder of the given dimension.
func NewMock(dims int) *Mock {
	if dims <= 0 {
		dims = defaultMockDimensions
	}
	return &Mock{dims: dims}
}

// Embed returns the L2-normalized bag-of-tokens vector for text.
func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, m.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(m.dims)
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Model returns the mock model name.
func (m *Mock) Model() string {
	return "mock"
}
