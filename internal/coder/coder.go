// Package coder generates a code artifact from a diagram analysis and
// retrieved reference snippets.
package coder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dpolishuk/sketch2code/internal/llm"
	"github.com/dpolishuk/sketch2code/internal/models"
)

// Input is everything one generation attempt sees. PriorReport is set on
// regeneration attempts only.
type Input struct {
	Analysis    *models.DiagramAnalysis
	Retrieval   models.RetrievalResult
	Query       string
	PriorReport *models.ValidationReport
	Attempt     int
}

// Coder produces a full replacement artifact for each attempt.
type Coder interface {
	Generate(ctx context.Context, in Input) (*models.GeneratedArtifact, error)
}

type LLMCoder struct {
	client  llm.Client
	model   string
	counter TokenCounter
	budget  int
	logger  *slog.Logger
	schema  any
}

type Option func(*LLMCoder)

// WithTokenCounter replaces the default tiktoken counter.
func WithTokenCounter(tc TokenCounter) Option {
	return func(c *LLMCoder) { c.counter = tc }
}

// WithSnippetBudget caps the tokens spent on reference snippets. Zero means no cap.
func WithSnippetBudget(tokens int) Option {
	return func(c *LLMCoder) { c.budget = tokens }
}

func NewLLMCoder(client llm.Client, model string, logger *slog.Logger, opts ...Option) *LLMCoder {
	if logger == nil {
		logger = slog.Default()
	}
	c := &LLMCoder{
		client: client,
		model:  model,
		budget: 3000,
		logger: logger.With("component", "coder"),
		schema: llm.SchemaFor(&artifactPayload{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = DefaultTokenCounter(c.logger)
	}
	return c
}

func (c *LLMCoder) Generate(ctx context.Context, in Input) (*models.GeneratedArtifact, error) {
	if in.Analysis == nil {
		return nil, models.GenerationFailure("no diagram analysis", nil)
	}

	prompt, included := c.buildPrompt(in)
	temperature := 0.2
	raw, err := c.client.GenerateJSON(ctx, llm.Request{
		Model:       c.model,
		System:      systemPrompt,
		Prompt:      prompt,
		Schema:      c.schema,
		SchemaName:  "code_artifact",
		Temperature: &temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.Canceled("coder", ctx.Err())
		}
		if errors.Is(err, llm.ErrEmptyResponse) {
			return nil, models.GenerationFailure("code model returned no response", err)
		}
		return nil, models.GenerationFailure("code model unavailable", err)
	}

	constraints := 0
	if in.PriorReport != nil {
		constraints = len(in.PriorReport.Blocking())
	}

	artifact, salvaged := ParseArtifact(raw)
	if salvaged {
		c.logger.WarnContext(ctx, "coder output was not valid JSON, salvaged code blocks",
			"attempt", in.Attempt, "files", len(artifact.Files))
	}
	c.logger.InfoContext(ctx, "artifact generated",
		"attempt", in.Attempt,
		"files", len(artifact.Files),
		"snippets", included,
		"constraints", constraints)
	return artifact, nil
}
