package llm

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"medassist/internal/svcerr"
)

// Client sends a prompt to a generative text API and returns the
// completion. No structured-output contract is enforced here; output shape
// is only as reliable as the model's prompt-following.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerateWithRetry wraps c.Generate with bounded exponential backoff on
// transient failures (ratelimit, 5xx, timeout). Permanent failures return
// immediately.
func GenerateWithRetry(ctx context.Context, c Client, prompt string) (string, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.RetryWithData(func() (string, error) {
		out, err := c.Generate(ctx, prompt)
		if err != nil && !svcerr.IsTransient(err) {
			return "", backoff.Permanent(err)
		}
		return out, err
	}, policy)
}
