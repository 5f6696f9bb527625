package retrieve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medassist/internal/vector"
)

type fakeEmbedder struct {
	calls int
	vec   []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, nil
}

type fakeIndex struct {
	metric  vector.Metric
	matches []vector.Match
	calls   int
	added   []vector.Entry
}

func (f *fakeIndex) Metric() vector.Metric { return f.metric }

func (f *fakeIndex) Add(_ context.Context, entries []vector.Entry) error {
	f.added = append(f.added, entries...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, _ int) ([]vector.Match, error) {
	f.calls++
	return f.matches, nil
}

func newTestRetriever(embedder Embedder, index vector.Index, opts Options) *Retriever {
	return New(embedder, index, opts, zerolog.Nop())
}

func TestEmptyQuerySkipsBackends(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{1}}
	index := &fakeIndex{}
	r := newTestRetriever(embedder, index, Options{IncludeGenerated: true})

	for _, q := range []string{"", "   ", "\n\t"} {
		snippets, err := r.Retrieve(context.Background(), q, 3)
		require.NoError(t, err)
		assert.Empty(t, snippets)
	}
	assert.Zero(t, embedder.calls)
	assert.Zero(t, index.calls)
}

func TestRetrieveFromSmallFlatIndex(t *testing.T) {
	// two entries, k=3: at most two results and no out-of-range metadata
	dir := t.TempDir()
	flat, err := vector.NewFlat(2, filepath.Join(dir, "i"), filepath.Join(dir, "m"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, flat.Add(ctx, []vector.Entry{
		{Vector: []float32{1, 0}, Metadata: vector.Metadata{"full_text": "alpha"}},
		{Vector: []float32{0, 1}, Metadata: vector.Metadata{"full_text": "beta"}},
	}))

	r := newTestRetriever(&fakeEmbedder{vec: []float32{1, 0}}, flat, Options{IncludeGenerated: true})
	snippets, err := r.Retrieve(ctx, "anything", 3)
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "alpha", snippets[0].Text)
	assert.Equal(t, "beta", snippets[1].Text)
}

func TestScoreThresholdOnHostedBackend(t *testing.T) {
	index := &fakeIndex{
		metric: vector.Cosine,
		matches: []vector.Match{
			{ID: 0, Score: 0.9, Metadata: vector.Metadata{"full_text": "best"}},
			{ID: 1, Score: 0.6, Metadata: vector.Metadata{"full_text": "good"}},
			{ID: 2, Score: 0.4, Metadata: vector.Metadata{"full_text": "weak"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, Options{MinScore: 0.5, IncludeGenerated: true})

	snippets, err := r.Retrieve(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "best", snippets[0].Text)
	assert.Equal(t, "good", snippets[1].Text)
}

func TestZeroMinScoreDisablesThreshold(t *testing.T) {
	index := &fakeIndex{
		metric: vector.Cosine,
		matches: []vector.Match{
			{ID: 0, Score: 0.1, Metadata: vector.Metadata{"full_text": "barely related"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, Options{MinScore: 0, IncludeGenerated: true})

	snippets, err := r.Retrieve(context.Background(), "query", 1)
	require.NoError(t, err)
	assert.Len(t, snippets, 1)
}

func TestNoThresholdOnDistanceBackend(t *testing.T) {
	index := &fakeIndex{
		metric: vector.Euclidean,
		matches: []vector.Match{
			{ID: 0, Score: 12.5, Metadata: vector.Metadata{"full_text": "near enough"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, Options{MinScore: 0.5, IncludeGenerated: true})

	snippets, err := r.Retrieve(context.Background(), "query", 1)
	require.NoError(t, err)
	assert.Len(t, snippets, 1)
}

func TestMalformedMatchesFilteredSilently(t *testing.T) {
	index := &fakeIndex{
		metric: vector.Euclidean,
		matches: []vector.Match{
			{ID: -1},
			{ID: 0, Metadata: nil},
			{ID: 1, Metadata: vector.Metadata{"note": "no text field"}},
			{ID: 2, Metadata: vector.Metadata{"full_text": "valid"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, Options{IncludeGenerated: true})

	snippets, err := r.Retrieve(context.Background(), "query", 4)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "valid", snippets[0].Text)
}

func TestGeneratedEntriesFilteredWhenDisabled(t *testing.T) {
	index := &fakeIndex{
		metric: vector.Euclidean,
		matches: []vector.Match{
			{ID: 0, Metadata: vector.Metadata{"full_text": "model output", "source": "ai_generated"}},
			{ID: 1, Metadata: vector.Metadata{"full_text": "reference", "source": "reference_corpus"}},
		},
	}
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, index, Options{IncludeGenerated: false})

	snippets, err := r.Retrieve(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "reference", snippets[0].Text)
}

func TestStoreInteractionAppendsPair(t *testing.T) {
	index := &fakeIndex{metric: vector.Euclidean}
	embedder := &fakeEmbedder{vec: []float32{1}}
	r := newTestRetriever(embedder, index, Options{IncludeGenerated: true})

	require.NoError(t, r.StoreInteraction(context.Background(), "question", "answer"))
	require.Len(t, index.added, 2)
	for _, e := range index.added {
		assert.Equal(t, "answer", e.Metadata["response"])
		assert.Equal(t, "ai_generated", e.Metadata["source"])
		assert.NotEmpty(t, e.ID)
	}
	assert.Equal(t, 2, embedder.calls)
}

func TestIndexUnavailablePropagates(t *testing.T) {
	r := newTestRetriever(&fakeEmbedder{vec: []float32{1}}, vector.Unavailable{}, Options{IncludeGenerated: true})
	_, err := r.Retrieve(context.Background(), "query", 3)
	assert.ErrorIs(t, err, vector.ErrNotInitialized)
}
