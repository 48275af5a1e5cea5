// Package retriever ranks reference snippets for a diagram and a user query.
package retriever

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/internal/retry"
	"github.com/dpolishuk/sketch2code/internal/snippet"
)

const DefaultTopK = 5

// Retriever never fails the pipeline: index errors and empty libraries both
// yield an empty result.
type Retriever struct {
	index  snippet.Index
	k      int
	policy retry.Policy
	logger *slog.Logger
}

func New(index snippet.Index, k int, policy retry.Policy, logger *slog.Logger) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{index: index, k: k, policy: policy, logger: logger.With("component", "retriever")}
}

func (r *Retriever) K() int { return r.k }

// Retrieve returns at most K snippets for the analysis, best first.
func (r *Retriever) Retrieve(ctx context.Context, analysis *models.DiagramAnalysis, query string) models.RetrievalResult {
	return r.RetrieveK(ctx, analysis, query, r.k)
}

// RetrieveK is Retrieve with an explicit cap.
func (r *Retriever) RetrieveK(ctx context.Context, analysis *models.DiagramAnalysis, query string, k int) models.RetrievalResult {
	empty := models.RetrievalResult{Items: []models.ScoredSnippet{}}
	text := BuildQuery(analysis, query)
	if text == "" || k <= 0 || r.index == nil {
		return empty
	}

	hits, err := retry.Do(ctx, r.policy, "snippet index", func(ctx context.Context) ([]models.ScoredSnippet, error) {
		return r.index.Search(ctx, text, k)
	})
	if err != nil {
		r.logger.WarnContext(ctx, "snippet index unavailable, continuing without snippets", "error", err)
		return empty
	}
	if len(hits) == 0 {
		r.logger.InfoContext(ctx, "no reference snippets found")
		return empty
	}

	return models.RetrievalResult{Items: Rank(hits, k)}
}

// Rank clamps scores to [0,1], keeps the best-scoring copy of each snippet id,
// orders by descending score (stable for ties) and caps the list at k.
func Rank(hits []models.ScoredSnippet, k int) []models.ScoredSnippet {
	best := make(map[string]int, len(hits))
	ranked := make([]models.ScoredSnippet, 0, len(hits))
	for _, h := range hits {
		h.Score = clamp(h.Score)
		if i, ok := best[h.Snippet.ID]; ok {
			if h.Score > ranked[i].Score {
				ranked[i].Score = h.Score
			}
			continue
		}
		best[h.Snippet.ID] = len(ranked)
		ranked = append(ranked, h)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// BuildQuery concatenates the user query, then distinct entity labels, then
// distinct relation kinds.
func BuildQuery(analysis *models.DiagramAnalysis, query string) string {
	parts := make([]string, 0, 8)
	if q := strings.TrimSpace(query); q != "" {
		parts = append(parts, q)
	}
	if analysis == nil {
		return strings.Join(parts, " ")
	}

	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		parts = append(parts, s)
	}
	for _, e := range analysis.Entities {
		add(e.Label)
	}
	clear(seen)
	for _, rel := range analysis.Relations {
		add(rel.Kind)
	}
	return strings.Join(parts, " ")
}

func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
