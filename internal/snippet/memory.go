package snippet

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/pkg/tokenize"
)

// MemoryIndex ranks snippets by the share of query terms they contain.
type MemoryIndex struct {
	mu    sync.RWMutex
	order []string
	items map[string]memoryEntry
}

type memoryEntry struct {
	record models.SnippetRecord
	terms  map[string]struct{}
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{items: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) Add(ctx context.Context, records []models.SnippetRecord) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if _, exists := m.items[rec.ID]; !exists {
			m.order = append(m.order, rec.ID)
		}
		m.items[rec.ID] = memoryEntry{record: rec, terms: documentTerms(rec)}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, text string, k int) ([]models.ScoredSnippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := tokenize.Set(tokenize.Terms(text))
	if len(query) == 0 || k <= 0 {
		return []models.ScoredSnippet{}, nil
	}

	m.mu.RLock()
	results := make([]models.ScoredSnippet, 0, len(m.order))
	for _, id := range m.order {
		entry := m.items[id]
		hits := 0
		for term := range query {
			if _, ok := entry.terms[term]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		results = append(results, models.ScoredSnippet{
			Snippet: entry.record,
			Score:   float64(hits) / float64(len(query)),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func documentTerms(rec models.SnippetRecord) map[string]struct{} {
	terms := tokenize.Terms(rec.Content)
	terms = append(terms, tokenize.Terms(strings.Join(rec.Tags, " "))...)
	if rec.Language != "" {
		terms = append(terms, strings.ToLower(rec.Language))
	}
	return tokenize.Set(terms)
}
