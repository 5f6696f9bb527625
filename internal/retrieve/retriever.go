package retrieve

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medassist/internal/vector"
)

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Snippet is one retrieved reference passage, best-first.
type Snippet struct {
	Text     string
	Score    float32
	Metadata vector.Metadata
}

// Options - Query-time policy, taken as given: callers resolve defaults.
// MinScore applies to similarity-score backends only; IncludeGenerated
// decides whether entries tagged source=ai_generated are eligible as
// context.
type Options struct {
	MinScore         float32
	IncludeGenerated bool
}

// Retriever turns a free-text query into ranked reference snippets via the
// embedding provider and the vector index.
type Retriever struct {
	embedder Embedder
	index    vector.Index
	opts     Options
	log      zerolog.Logger
}

func New(embedder Embedder, index vector.Index, opts Options, log zerolog.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, opts: opts, log: log}
}

// Retrieve returns up to k snippets in the order the backend ranked them.
// An empty or whitespace-only query returns no snippets without touching
// the embedding or index backends. Matches with sentinel ids or missing
// metadata are dropped silently; the backing index may return both.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := r.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}

	scored := r.index.Metric() == vector.Cosine
	snippets := make([]Snippet, 0, len(matches))
	for _, m := range matches {
		if m.ID < 0 || m.Metadata == nil {
			continue
		}
		if scored && m.Score <= r.opts.MinScore {
			continue
		}
		if !r.opts.IncludeGenerated {
			if src, _ := m.Metadata["source"].(string); src == "ai_generated" {
				continue
			}
		}
		text := snippetText(m.Metadata)
		if text == "" {
			continue
		}
		snippets = append(snippets, Snippet{Text: text, Score: m.Score, Metadata: m.Metadata})
	}
	r.log.Debug().Int("matches", len(matches)).Int("snippets", len(snippets)).Msg("retrieved contexts")
	return snippets, nil
}

// StoreInteraction appends a query/response pair back into the index so
// future questions can retrieve it as additional context.
func (r *Retriever) StoreInteraction(ctx context.Context, query, response string) error {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return err
	}
	responseVec, err := r.embedder.Embed(ctx, response)
	if err != nil {
		return err
	}
	meta := vector.Metadata{
		"query":     query,
		"response":  response,
		"full_text": response,
		"type":      "query",
		"source":    "ai_generated",
		"timestamp": time.Now().Format("20060102_150405"),
	}
	return r.index.Add(ctx, []vector.Entry{
		{ID: uuid.NewString(), Vector: queryVec, Metadata: meta},
		{ID: uuid.NewString(), Vector: responseVec, Metadata: meta},
	})
}

// snippetText rebuilds the human-readable passage from metadata. full_text
// is the canonical field; stored interactions fall back to their response.
func snippetText(meta vector.Metadata) string {
	if text, ok := meta["full_text"].(string); ok && text != "" {
		return text
	}
	if text, ok := meta["response"].(string); ok {
		return text
	}
	return ""
}
