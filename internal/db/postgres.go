package db

import (
	"context"
	"fmt"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PgStore keeps snippets in a pgvector-backed table.
type PgStore struct {
	Pool       *pgxpool.Pool
	dimensions int
}

func NewPgStore(ctx context.Context, dsn string, dimensions int) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PgStore{Pool: pool, dimensions: dimensions}, nil
}

func (s *PgStore) Close() {
	s.Pool.Close()
}

// EnsureSchema creates the extension, table and HNSW index when missing.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dimensions) {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snippets (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS snippets_embedding_idx ON snippets USING hnsw (embedding vector_cosine_ops)`,
	}
}

// WriteSnippets upserts snippets in one transaction. embeddings[i] belongs to records[i].
func (s *PgStore) WriteSnippets(ctx context.Context, records []models.SnippetRecord, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fmt.Errorf("got %d embeddings for %d snippets", len(embeddings), len(records))
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, rec := range records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO snippets (id, content, language, tags, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content,
			    language = EXCLUDED.language,
			    tags = EXCLUDED.tags,
			    embedding = EXCLUDED.embedding
		`, rec.ID, rec.Content, rec.Language, tags, pgvector.NewVector(embeddings[i]))
		if err != nil {
			return fmt.Errorf("failed to upsert snippet %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SearchSnippets returns the nearest snippets by cosine similarity.
func (s *PgStore) SearchSnippets(ctx context.Context, embedding []float32, limit int) ([]models.ScoredSnippet, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, content, language, tags, 1 - (embedding <=> $1) AS score
		FROM snippets
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search snippets: %w", err)
	}
	defer rows.Close()

	results := make([]models.ScoredSnippet, 0, limit)
	for rows.Next() {
		var item models.ScoredSnippet
		if err := rows.Scan(&item.Snippet.ID, &item.Snippet.Content, &item.Snippet.Language, &item.Snippet.Tags, &item.Score); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return results, nil
}
