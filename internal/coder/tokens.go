package coder

import (
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt size.
type TokenCounter interface {
	CountTokens(text string) int
}

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding. The BPE ranks may be
// fetched over the network on first use.
func NewTiktokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &tiktokenCounter{encoding: enc}, nil
}

func (t *tiktokenCounter) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// HeuristicCounter assumes four bytes per token.
type HeuristicCounter struct{}

func (HeuristicCounter) CountTokens(text string) int {
	return (len(text) + 3) / 4
}

// DefaultTokenCounter prefers tiktoken and falls back to HeuristicCounter.
func DefaultTokenCounter(logger *slog.Logger) TokenCounter {
	counter, err := NewTiktokenCounter()
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken unavailable, using byte heuristic", "error", err)
		}
		return HeuristicCounter{}
	}
	return counter
}
