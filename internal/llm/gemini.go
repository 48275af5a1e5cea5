package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/dpolishuk/sketch2code/internal/retry"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls the Gemini API. The response schema travels in the prompt
// and the response MIME type is pinned to application/json.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

func (g *GeminiClient) GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	model := g.model
	if req.Model != "" {
		model = req.Model
	}

	prompt := req.Prompt
	if req.Schema != nil {
		prompt += "\n\n[RESPONSE JSON SCHEMA]\n" + SchemaText(req.Schema)
	}
	parts := []*genai.Part{{Text: prompt}}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: parts}},
		cfg,
	)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return json.RawMessage(sb.String()), nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && retry.TransientStatus(apiErr.Code) {
		return retry.Transient(fmt.Errorf("gemini API call failed: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) || retry.IsTransient(err) {
		return retry.Transient(fmt.Errorf("gemini API call failed: %w", err))
	}
	return fmt.Errorf("gemini API call failed: %w", err)
}
