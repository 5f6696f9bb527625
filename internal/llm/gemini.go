package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"google.golang.org/genai"

	"medassist/internal/svcerr"
)

// Gemini generates completions through the genai SDK. The client reads
// GEMINI_API_KEY from env on its own.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGemini(ctx context.Context, model string, timeout time.Duration) (*Gemini, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", svcerr.Wrap("gemini", "generate", isTransientAPIError(err), err)
	}
	if len(resp.Candidates) < 1 {
		return "", svcerr.Wrap("gemini", "generate", false, fmt.Errorf("no candidates returned"))
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) < 1 {
		return "", svcerr.Wrap("gemini", "generate", false, fmt.Errorf("no content returned"))
	}
	return candidate.Content.Parts[0].Text, nil
}

// isTransientAPIError classifies genai failures the same way the Groq
// client classifies HTTP statuses: ratelimits and server errors retry.
func isTransientAPIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return false
}
