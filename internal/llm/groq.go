package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"medassist/internal/svcerr"
)

const groqURL = "https://api.groq.com/openai/v1/chat/completions"

// Groq generates completions through Groq's OpenAI-compatible chat API,
// non-streaming.
type Groq struct {
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func NewGroq(model string, timeout time.Duration) (*Groq, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY env var not set")
	}
	return &Groq{apiKey: apiKey, model: model, timeout: timeout, http: &http.Client{}}, nil
}

func (g *Groq) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Model:    g.model,
		Stream:   false,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, groqURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", svcerr.Wrap("groq", "generate", true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", svcerr.Wrap("groq", "generate", transient,
			fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", svcerr.Wrap("groq", "generate", false, err)
	}
	if len(parsed.Choices) < 1 {
		return "", svcerr.Wrap("groq", "generate", false, fmt.Errorf("no choices returned"))
	}
	return parsed.Choices[0].Message.Content, nil
}
