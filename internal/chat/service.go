package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"medassist/internal/llm"
	"medassist/internal/normalize"
	"medassist/internal/prompt"
	"medassist/internal/retrieve"
	"medassist/internal/vector"
)

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("query is empty")

// Service answers free-text medical questions: retrieve reference snippets,
// compose the Q&A prompt, call the model, normalize the output.
type Service struct {
	retriever         *retrieve.Retriever
	client            llm.Client
	topK              int
	storeInteractions bool
	log               zerolog.Logger
}

func NewService(retriever *retrieve.Retriever, client llm.Client, topK int, storeInteractions bool, log zerolog.Logger) *Service {
	if topK <= 0 {
		topK = 3
	}
	return &Service{
		retriever:         retriever,
		client:            client,
		topK:              topK,
		storeInteractions: storeInteractions,
		log:               log,
	}
}

// Answer responds to query, returning the normalized answer and the
// snippets it was grounded on. Retrieval failures degrade to an
// uncontextualized answer instead of failing the request; an unavailable
// index is the common case on a fresh deployment.
func (s *Service) Answer(ctx context.Context, query string) (string, []retrieve.Snippet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, ErrEmptyQuery
	}

	snippets, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		if errors.Is(err, vector.ErrNotInitialized) {
			s.log.Warn().Msg("index unavailable, answering without context")
		} else {
			s.log.Error().Err(err).Msg("retrieval failed, answering without context")
		}
		snippets = nil
	}

	texts := make([]string, len(snippets))
	for i, sn := range snippets {
		texts[i] = sn.Text
	}

	answer, err := llm.GenerateWithRetry(ctx, s.client, prompt.ComposeQuestion(query, texts))
	if err != nil {
		return "", nil, err
	}
	answer = normalize.Normalize(answer)

	if s.storeInteractions {
		if err := s.retriever.StoreInteraction(ctx, query, answer); err != nil {
			s.log.Error().Err(err).Msg("failed to store interaction")
		}
	}
	return answer, snippets, nil
}

// Simplify rewrites a medical term in plain language.
func (s *Service) Simplify(ctx context.Context, term string) (string, error) {
	out, err := llm.GenerateWithRetry(ctx, s.client, prompt.ComposeSimplify(term))
	if err != nil {
		return "", err
	}
	return normalize.Normalize(out), nil
}
