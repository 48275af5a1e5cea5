package snippet

import (
	"context"
	"fmt"

	"github.com/dpolishuk/sketch2code/internal/db"
	"github.com/dpolishuk/sketch2code/internal/embedding"
	"github.com/dpolishuk/sketch2code/internal/models"
)

// VectorStore persists snippet embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	WriteSnippets(ctx context.Context, records []models.SnippetRecord, embeddings [][]float32) error
	SearchSnippets(ctx context.Context, embedding []float32, limit int) ([]models.ScoredSnippet, error)
}

var (
	_ VectorStore = (*db.SnippetGraph)(nil)
	_ VectorStore = (*db.PgStore)(nil)
)

// VectorIndex embeds queries and snippets and delegates storage to a VectorStore.
type VectorIndex struct {
	store    VectorStore
	embedder embedding.Embedder
	batch    int
}

func NewVectorIndex(store VectorStore, embedder embedding.Embedder) *VectorIndex {
	return &VectorIndex{store: store, embedder: embedder, batch: 32}
}

// NewNeo4jIndex searches the Neo4j snippet vector index.
func NewNeo4jIndex(client *db.Neo4jClient, embedder embedding.Embedder) *VectorIndex {
	return NewVectorIndex(db.NewSnippetGraph(client), embedder)
}

// NewPgvectorIndex searches the pgvector snippets table.
func NewPgvectorIndex(store *db.PgStore, embedder embedding.Embedder) *VectorIndex {
	return NewVectorIndex(store, embedder)
}

func (v *VectorIndex) Search(ctx context.Context, text string, k int) ([]models.ScoredSnippet, error) {
	if k <= 0 || text == "" {
		return []models.ScoredSnippet{}, nil
	}
	vec, err := embedding.EmbedOne(ctx, v.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := v.store.SearchSnippets(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = clampScore(results[i].Score)
	}
	return results, nil
}

func (v *VectorIndex) Add(ctx context.Context, records []models.SnippetRecord) error {
	if err := validateRecords(records); err != nil {
		return err
	}
	for start := 0; start < len(records); start += v.batch {
		end := min(start+v.batch, len(records))
		chunk := records[start:end]

		texts := make([]string, len(chunk))
		for i, rec := range chunk {
			texts[i] = rec.Content
		}
		vecs, err := v.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed snippets: %w", err)
		}
		if err := v.store.WriteSnippets(ctx, chunk, vecs); err != nil {
			return err
		}
	}
	return nil
}
