package snippet

import (
	"context"
	"errors"
	"testing"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

type fakeStore struct {
	written []models.SnippetRecord
	vectors [][]float32
	results []models.ScoredSnippet
	limit   int
}

func (s *fakeStore) WriteSnippets(ctx context.Context, records []models.SnippetRecord, embeddings [][]float32) error {
	s.written = append(s.written, records...)
	s.vectors = append(s.vectors, embeddings...)
	return nil
}

func (s *fakeStore) SearchSnippets(ctx context.Context, embedding []float32, limit int) ([]models.ScoredSnippet, error) {
	s.limit = limit
	return s.results, nil
}

func TestVectorIndex_AddBatchesEmbeddings(t *testing.T) {
	store := &fakeStore{}
	emb := &fakeEmbedder{}
	idx := NewVectorIndex(store, emb)
	idx.batch = 2

	records := []models.SnippetRecord{
		{ID: "a", Content: "a"}, {ID: "b", Content: "bb"}, {ID: "c", Content: "ccc"},
	}
	require.NoError(t, idx.Add(context.Background(), records))

	assert.Equal(t, 2, emb.calls)
	assert.Equal(t, records, store.written)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, store.vectors)
}

func TestVectorIndex_SearchClampsScores(t *testing.T) {
	store := &fakeStore{results: []models.ScoredSnippet{
		{Snippet: models.SnippetRecord{ID: "a"}, Score: 1.2},
		{Snippet: models.SnippetRecord{ID: "b"}, Score: -0.3},
	}}
	idx := NewVectorIndex(store, &fakeEmbedder{})

	results, err := idx.Search(context.Background(), "orders", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, store.limit)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 0.0, results[1].Score)
}

func TestVectorIndex_SearchEmbedFailure(t *testing.T) {
	idx := NewVectorIndex(&fakeStore{}, &fakeEmbedder{err: errors.New("down")})
	_, err := idx.Search(context.Background(), "orders", 4)
	assert.Error(t, err)
}
