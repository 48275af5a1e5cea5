package db

import (
	"context"
	"fmt"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const snippetIndexName = "snippet_embeddings"

// CreateSnippetIndex creates the vector index over snippet embeddings
func (c *Neo4jClient) CreateSnippetIndex(ctx context.Context, dimensions int) error {
	_, err := c.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			CREATE VECTOR INDEX %s IF NOT EXISTS
			FOR (s:Snippet) ON (s.embedding)
			OPTIONS {indexConfig: {
				`+"`"+`vector.dimensions`+"`"+`: %d,
				`+"`"+`vector.similarity_function`+"`"+`: 'cosine'
			}}
		`, snippetIndexName, dimensions)
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

// SnippetGraph stores snippets as (:Snippet) nodes next to their embeddings.
type SnippetGraph struct {
	client *Neo4jClient
}

func NewSnippetGraph(client *Neo4jClient) *SnippetGraph {
	return &SnippetGraph{client: client}
}

// WriteSnippets upserts snippets by id. embeddings[i] belongs to records[i].
func (g *SnippetGraph) WriteSnippets(ctx context.Context, records []models.SnippetRecord, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fmt.Errorf("got %d embeddings for %d snippets", len(embeddings), len(records))
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = map[string]any{
			"id":        rec.ID,
			"content":   rec.Content,
			"language":  rec.Language,
			"tags":      rec.Tags,
			"embedding": embeddings[i],
		}
	}

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $rows AS row
			MERGE (s:Snippet {id: row.id})
			SET s.content = row.content,
			    s.language = row.language,
			    s.tags = row.tags,
			    s.embedding = row.embedding
		`
		_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to write snippets: %w", err)
	}
	return nil
}

// SearchSnippets returns the nearest snippets to embedding with their raw similarity.
func (g *SnippetGraph) SearchSnippets(ctx context.Context, embedding []float32, limit int) ([]models.ScoredSnippet, error) {
	result, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			CALL db.index.vector.queryNodes($index, $limit, $embedding)
			YIELD node, score
			RETURN node.id AS id, node.content AS content, node.language AS language,
			       node.tags AS tags, score
			ORDER BY score DESC
		`
		records, err := tx.Run(ctx, query, map[string]any{
			"index":     snippetIndexName,
			"limit":     limit,
			"embedding": embedding,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to run vector search query: %w", err)
		}

		var results []models.ScoredSnippet
		for records.Next(ctx) {
			rec := records.Record()
			id, _ := rec.Get("id")
			content, _ := rec.Get("content")
			language, _ := rec.Get("language")
			tags, _ := rec.Get("tags")
			score, _ := rec.Get("score")

			results = append(results, models.ScoredSnippet{
				Snippet: models.SnippetRecord{
					ID:       asString(id),
					Content:  asString(content),
					Language: asString(language),
					Tags:     asStrings(tags),
				},
				Score: asFloat(score),
			})
		}
		if err := records.Err(); err != nil {
			return nil, fmt.Errorf("error iterating search results: %w", err)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []models.ScoredSnippet{}, nil
	}
	return result.([]models.ScoredSnippet), nil
}

// CountSnippets returns the number of stored snippets.
func (g *SnippetGraph) CountSnippets(ctx context.Context) (int, error) {
	result, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `MATCH (s:Snippet) RETURN count(s) AS n`, nil)
		if err != nil {
			return nil, err
		}
		rec, err := records.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		return int(asFloat(n)), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count snippets: %w", err)
	}
	return result.(int), nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
