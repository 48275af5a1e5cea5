package models

type SnippetRecord struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
}

type ScoredSnippet struct {
	Snippet SnippetRecord `json:"snippet"`
	Score   float64       `json:"score"`
}

// RetrievalResult is ordered by descending score and capped at top-k.
type RetrievalResult struct {
	Items []ScoredSnippet `json:"items"`
}

func (r RetrievalResult) Len() int { return len(r.Items) }

func (r RetrievalResult) Empty() bool { return len(r.Items) == 0 }
