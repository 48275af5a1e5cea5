// Package llm is the transport for multimodal, JSON-producing model calls.
// The vision analyzer and the coder talk to models only through Client.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/dpolishuk/sketch2code/internal/models"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderRemote = "remote"
)

var ErrEmptyResponse = errors.New("empty model response")

// Request describes one model call that must answer with a JSON document.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Images      []models.Image
	Schema      any
	SchemaName  string
	Temperature *float64
	MaxTokens   int
}

// Client calls a model. GenerateJSON returns the model text as produced;
// callers run ExtractJSON before decoding.
type Client interface {
	GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error)
	Name() string
}

// ExtractJSON strips markdown fences and leading prose around a JSON object.
// A fenced block whose body is not JSON is returned unchanged so callers can
// still read the code inside it.
func ExtractJSON(raw []byte) []byte {
	b := bytes.TrimSpace(raw)
	if json.Valid(b) {
		return b
	}
	if bytes.HasPrefix(b, []byte("```")) {
		inner := b
		if nl := bytes.IndexByte(inner, '\n'); nl >= 0 {
			inner = inner[nl+1:]
		}
		inner = bytes.TrimSpace(bytes.TrimSuffix(bytes.TrimSpace(inner), []byte("```")))
		if json.Valid(inner) {
			return inner
		}
		return b
	}
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start >= 0 && end > start && json.Valid(b[start:end+1]) {
		return b[start : end+1]
	}
	return b
}

func dataURL(img models.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
