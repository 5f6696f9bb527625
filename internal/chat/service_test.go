package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medassist/internal/retrieve"
	"medassist/internal/vector"
)

type fakeEmbedder struct{ vec []float32 }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, nil
}

type fakeIndex struct {
	matches []vector.Match
	added   []vector.Entry
}

func (f *fakeIndex) Metric() vector.Metric { return vector.Cosine }

func (f *fakeIndex) Add(_ context.Context, entries []vector.Entry) error {
	f.added = append(f.added, entries...)
	return nil
}

func (f *fakeIndex) Search(context.Context, []float32, int) ([]vector.Match, error) {
	return f.matches, nil
}

type recordingLLM struct {
	prompts []string
	out     string
	err     error
}

func (r *recordingLLM) Generate(_ context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.out, r.err
}

func newTestService(index vector.Index, client *recordingLLM, store bool) *Service {
	retriever := retrieve.New(fakeEmbedder{vec: []float32{1}}, index,
		retrieve.Options{MinScore: 0.5, IncludeGenerated: true}, zerolog.Nop())
	return NewService(retriever, client, 3, store, zerolog.Nop())
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(&fakeIndex{}, &recordingLLM{out: "x"}, false)
	_, _, err := svc.Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAnswerGroundsPromptInSnippets(t *testing.T) {
	index := &fakeIndex{matches: []vector.Match{
		{ID: 0, Score: 0.9, Metadata: vector.Metadata{"full_text": "anemia is low hemoglobin"}},
	}}
	client := &recordingLLM{out: "It means your cbc shows low hemoglobin."}
	svc := newTestService(index, client, false)

	answer, snippets, err := svc.Answer(context.Background(), "what is anemia?")
	require.NoError(t, err)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Question: what is anemia?")
	assert.Contains(t, client.prompts[0], "anemia is low hemoglobin")
	assert.Contains(t, client.prompts[0], "Answer based on info:")
	require.Len(t, snippets, 1)
	// answer is normalized
	assert.Equal(t, "It means your CBC shows low hemoglobin.", answer)
}

func TestAnswerDegradesWhenIndexUnavailable(t *testing.T) {
	client := &recordingLLM{out: "general advice"}
	svc := newTestService(vector.Unavailable{}, client, false)

	answer, snippets, err := svc.Answer(context.Background(), "what is anemia?")
	require.NoError(t, err)
	assert.Empty(t, snippets)
	assert.Equal(t, "general advice", answer)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Relevant info: \n")
}

func TestAnswerStoresInteraction(t *testing.T) {
	index := &fakeIndex{}
	client := &recordingLLM{out: "stored answer"}
	svc := newTestService(index, client, true)

	_, _, err := svc.Answer(context.Background(), "question")
	require.NoError(t, err)
	require.Len(t, index.added, 2)
	assert.Equal(t, "question", index.added[0].Metadata["query"])
	assert.Equal(t, "stored answer", index.added[0].Metadata["response"])
}

func TestAnswerPropagatesLLMFailure(t *testing.T) {
	client := &recordingLLM{err: errors.New("model down")}
	svc := newTestService(&fakeIndex{}, client, false)

	_, _, err := svc.Answer(context.Background(), "question")
	assert.ErrorContains(t, err, "model down")
}

func TestSimplify(t *testing.T) {
	client := &recordingLLM{out: "A cbc counts your blood cells."}
	svc := newTestService(&fakeIndex{}, client, false)

	out, err := svc.Simplify(context.Background(), "CBC")
	require.NoError(t, err)
	assert.Equal(t, "A CBC counts your blood cells.", out)
	require.Len(t, client.prompts, 1)
	assert.Equal(t, "Simplify the medical term 'CBC' in simple language:", client.prompts[0])
}
