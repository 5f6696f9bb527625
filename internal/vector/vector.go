package vector

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by every operation of a backend that failed
// to load or connect at startup. Callers short-circuit instead of crashing.
var ErrNotInitialized = errors.New("vector index not initialized")

// Metric - How a backend ranks matches. Euclidean backends return distances
// (ascending, lower is better), cosine backends return similarity scores
// (descending, higher is better).
type Metric int

const (
	Euclidean Metric = iota
	Cosine
)

// Metadata travels with every stored vector. The "full_text" field holds the
// human-readable snippet used to rebuild retrieval context.
type Metadata map[string]any

// Entry is one vector plus its metadata, appended to an index.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is one search candidate. ID indexes the backend's metadata table and
// may be a negative sentinel when the backend had fewer entries than
// requested; Metadata may be nil for stale ids. Callers must guard both.
type Match struct {
	ID       int64
	Score    float32
	Metadata Metadata
}

// Index is the capability shared by the local flat backend and the hosted
// qdrant backend. Entries are append-only; results come back in the
// backend's native order.
type Index interface {
	Metric() Metric
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vec []float32, k int) ([]Match, error)
}

// Unavailable stands in for a backend that could not be constructed, so the
// rest of the service can start and report "index unavailable" per request.
type Unavailable struct{}

func (Unavailable) Metric() Metric { return Euclidean }

func (Unavailable) Add(context.Context, []Entry) error {
	return ErrNotInitialized
}

func (Unavailable) Search(context.Context, []float32, int) ([]Match, error) {
	return nil, ErrNotInitialized
}
