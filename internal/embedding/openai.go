package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpolishuk/sketch2code/internal/retry"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	DefaultOpenAIModel      = "text-embedding-3-small"
	DefaultOpenAIDimensions = 1536
)

// OpenAIEmbedder uses the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) *OpenAIEmbedder {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimensions <= 0 {
		dimensions = DefaultOpenAIDimensions
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dimensions)),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && retry.TransientStatus(apiErr.StatusCode) {
			return nil, retry.Transient(fmt.Errorf("openai embeddings failed: %w", err))
		}
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d inputs", ErrCountMismatch, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
