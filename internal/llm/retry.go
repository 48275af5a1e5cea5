package llm

import (
	"context"
	"encoding/json"

	"github.com/dpolishuk/sketch2code/internal/retry"
)

type retryingClient struct {
	next   Client
	policy retry.Policy
}

// WithRetry decorates a client with per-attempt timeouts and transient retries.
func WithRetry(next Client, policy retry.Policy) Client {
	return &retryingClient{next: next, policy: policy}
}

func (c *retryingClient) GenerateJSON(ctx context.Context, req Request) (json.RawMessage, error) {
	return retry.Do(ctx, c.policy, c.next.Name(), func(ctx context.Context) (json.RawMessage, error) {
		return c.next.GenerateJSON(ctx, req)
	})
}

func (c *retryingClient) Name() string { return c.next.Name() }
