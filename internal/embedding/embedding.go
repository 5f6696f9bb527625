package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"medassist/internal/svcerr"
)

const serviceName = "embedding"

// Client talks to an Ollama-compatible /api/embed endpoint. Embeddings are
// deterministic for a fixed model version.
type Client struct {
	url     string
	model   string
	dim     int
	timeout time.Duration
	http    *http.Client
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func New(url, model string, dim int, timeout time.Duration) *Client {
	return &Client{
		url:     url,
		model:   model,
		dim:     dim,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Dimension of the configured embedding model.
func (c *Client) Dimension() int { return c.dim }

// Embed maps text to a fixed-length vector, retrying transient failures a
// bounded number of times.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.RetryWithData(func() ([]float32, error) {
		vec, err := c.embedOnce(ctx, text)
		if err != nil && !svcerr.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return vec, err
	}, policy)
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, svcerr.Wrap(serviceName, "embed", true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, svcerr.Wrap(serviceName, "embed", transient,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, svcerr.Wrap(serviceName, "embed", false, err)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, svcerr.Wrap(serviceName, "embed", false, fmt.Errorf("empty embedding"))
	}
	vec := parsed.Embeddings[0]
	if len(vec) != c.dim {
		return nil, svcerr.Wrap(serviceName, "embed", false,
			fmt.Errorf("model returned dimension %d, expected %d", len(vec), c.dim))
	}
	return vec, nil
}
