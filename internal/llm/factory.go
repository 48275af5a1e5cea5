package llm

import (
	"context"
	"fmt"
)

// Config selects and configures one model backend.
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	RemoteURL string
	Model     string
}

// New builds a Client for cfg.Provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case ProviderRemote:
		return NewRemoteClient(cfg.RemoteURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
