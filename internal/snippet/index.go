// Package snippet is the client side of the reference snippet library:
// similarity search over stored snippets and ingestion of new ones.
package snippet

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpolishuk/sketch2code/internal/models"
)

// Index returns up to k snippets ranked by similarity to text.
// Implementations must be safe for concurrent use.
type Index interface {
	Search(ctx context.Context, text string, k int) ([]models.ScoredSnippet, error)
}

// Indexer stores snippets. Adding a record with an existing id replaces it.
type Indexer interface {
	Add(ctx context.Context, records []models.SnippetRecord) error
}

// Store is an Index that also accepts new snippets.
type Store interface {
	Index
	Indexer
}

var ErrInvalidRecord = errors.New("invalid snippet record")

func validateRecords(records []models.SnippetRecord) error {
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: missing id at position %d", ErrInvalidRecord, i)
		}
		if rec.Content == "" {
			return fmt.Errorf("%w: empty content for %s", ErrInvalidRecord, rec.ID)
		}
	}
	return nil
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
