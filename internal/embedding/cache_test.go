package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedderForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 16, time.Minute)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"user", "orders"})
	require.NoError(t, err)

	vecs, err := cached.Embed(ctx, []string{"orders", "payments", "user"})
	require.NoError(t, err)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []string{"payments"}, inner.calls[1])
	assert.Equal(t, [][]float32{{6}, {8}, {4}}, vecs)
	assert.Equal(t, 3, cached.Len())
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	cached := NewCachedEmbedder(inner, 16, time.Minute)

	_, err := cached.Embed(context.Background(), []string{"user"})
	assert.Error(t, err)
	assert.Equal(t, 0, cached.Len())
}

func TestEmbedOne(t *testing.T) {
	v, err := EmbedOne(context.Background(), &countingEmbedder{}, "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)
}
