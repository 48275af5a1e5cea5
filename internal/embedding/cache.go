package embedding

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEmbedder memoizes vectors per text in an expiring LRU. The cache is
// safe for concurrent use; misses are forwarded in one batch.
type CachedEmbedder struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
}

func NewCachedEmbedder(next Embedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = 1
	}
	return &CachedEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, ErrCountMismatch
	}
	for j, v := range vecs {
		out[missingIdx[j]] = v
		c.cache.Add(missing[j], v)
	}
	return out, nil
}

func (c *CachedEmbedder) Len() int { return c.cache.Len() }
