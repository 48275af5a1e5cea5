package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dpolishuk/sketch2code/internal/models"
	"github.com/dpolishuk/sketch2code/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatCompletionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"entities\":[{\"label\":\"User\",\"type\":\"Actor\"}]}"}
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestOpenAIGenerateJSONSendsImageAndSchema(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), "data:image/png;base64,"), "image data URL missing")
		assert.True(t, strings.Contains(string(body), `"json_schema"`), "json schema response format missing")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionBody))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL+"/v1/", "gpt-4o")
	require.NoError(t, err)

	out, err := client.GenerateJSON(context.Background(), Request{
		System:     "you read diagrams",
		Prompt:     "what is this",
		Images:     []models.Image{{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}},
		Schema:     SchemaFor(&struct{ Label string }{}),
		SchemaName: "diagram",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "entities")
}

func TestOpenAIServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient("test-key", server.URL+"/v1/", "")
	require.NoError(t, err)

	_, err = client.GenerateJSON(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "", "")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)
}

func TestExtractJSON(t *testing.T) {
	testCases := map[string]string{
		"plain":  `{"a":1}`,
		"fenced": "```json\n{\"a\":1}\n```",
		"prose":  "Here you go: {\"a\":1} hope it helps",
	}
	for name, in := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.JSONEq(t, `{"a":1}`, string(ExtractJSON([]byte(in))))
		})
	}
}

func TestExtractJSONLeavesFencedCode(t *testing.T) {
	in := "```go\npackage db\n\ntype OrdersDB struct{}\n```"
	assert.Equal(t, in, string(ExtractJSON([]byte(in))))
}

func TestSchemaForDisallowsAdditionalProperties(t *testing.T) {
	type payload struct {
		Summary string `json:"summary"`
	}
	text := SchemaText(SchemaFor(&payload{}))
	assert.Contains(t, text, `"summary"`)
	assert.Contains(t, text, `"additionalProperties": false`)
}
