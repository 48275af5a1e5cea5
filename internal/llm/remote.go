package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dpolishuk/sketch2code/internal/retry"
)

// RemoteImage is an inline image in a remote model request.
type RemoteImage struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// RemoteRequest is the body sent to the model service's /generate endpoint.
type RemoteRequest struct {
	Model       string        `json:"model,omitempty"`
	System      string        `json:"system,omitempty"`
	Prompt      string        `json:"prompt"`
	Images      []RemoteImage `json:"images,omitempty"`
	Schema      any           `json:"schema,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"maxTokens,omitempty"`
}

// RemoteResponse carries the model's JSON answer.
type RemoteResponse struct {
	Output json.RawMessage `json:"output"`
}

// RemoteClient talks to a self-hosted multimodal model service over HTTP.
type RemoteClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewRemoteClient(baseURL, model string) *RemoteClient {
	return &RemoteClient{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{},
	}
}

func (c *RemoteClient) Name() string { return "remote:" + c.model }

func (c *RemoteClient) GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	body := RemoteRequest{
		Model:       c.model,
		System:      req.System,
		Prompt:      req.Prompt,
		Schema:      req.Schema,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	for _, img := range req.Images {
		body.Images = append(body.Images, RemoteImage{
			MIMEType: img.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("model service returned status %d: %s", resp.StatusCode, string(respBody))
		if retry.TransientStatus(resp.StatusCode) {
			return nil, retry.Transient(err)
		}
		return nil, err
	}

	var out RemoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(bytes.TrimSpace(out.Output)) == 0 {
		return nil, fmt.Errorf("remote: %w", ErrEmptyResponse)
	}

	// Services may return the JSON document as a string.
	var s string
	if err := json.Unmarshal(out.Output, &s); err == nil {
		return json.RawMessage(s), nil
	}
	return out.Output, nil
}
