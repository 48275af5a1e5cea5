package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/dpolishuk/sketch2code/internal/retry"
)

const DefaultOpenAIModel = "gpt-4o"

var ErrAPIKeyNotSet = errors.New("model API key not set")

type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a chat-completions client. SDK-level retries are
// disabled; retries belong to WithRetry.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
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
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai:" + c.model }

func (c *OpenAIClient) GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: c.messages(req),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Schema: req.Schema,
					Strict: openai.Bool(false),
				},
			},
		}
	} else {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w: no choices", ErrEmptyResponse)
	}

	slog.DebugContext(ctx, "model call completed",
		"model", model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"finish_reason", completion.Choices[0].FinishReason)

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return json.RawMessage(content), nil
}

func (c *OpenAIClient) messages(req Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	if len(req.Images) == 0 {
		return append(msgs, openai.UserMessage(req.Prompt))
	}

	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}
	return append(msgs, openai.UserMessage(parts))
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if retry.TransientStatus(apiErr.StatusCode) {
			return retry.Transient(fmt.Errorf("openai API call failed: %w", err))
		}
		return fmt.Errorf("openai API call failed: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || retry.IsTransient(err) {
		return retry.Transient(fmt.Errorf("openai API call failed: %w", err))
	}
	return fmt.Errorf("openai API call failed: %w", err)
}
