package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlat(t *testing.T, dim int) (*Flat, string, string) {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "test.index")
	metaPath := filepath.Join(dir, "metadata.json")
	f, err := NewFlat(dim, indexPath, metaPath)
	require.NoError(t, err)
	return f, indexPath, metaPath
}

func entry(text string, vec ...float32) Entry {
	return Entry{Vector: vec, Metadata: Metadata{"full_text": text}}
}

func TestFlatSearchOrdering(t *testing.T) {
	f, _, _ := newTestFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, f.Add(ctx, []Entry{
		entry("far", 10, 10),
		entry("near", 1, 1),
		entry("mid", 5, 5),
	}))

	matches, err := f.Search(ctx, []float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "near", matches[0].Metadata["full_text"])
	assert.Equal(t, "mid", matches[1].Metadata["full_text"])
	assert.Equal(t, "far", matches[2].Metadata["full_text"])
	assert.Less(t, matches[0].Score, matches[1].Score)
}

func TestFlatSearchPadsWithSentinels(t *testing.T) {
	f, _, _ := newTestFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, f.Add(ctx, []Entry{entry("a", 1, 0), entry("b", 0, 1)}))

	matches, err := f.Search(ctx, []float32{0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 5)
	for _, m := range matches[2:] {
		assert.Equal(t, int64(-1), m.ID)
		assert.Nil(t, m.Metadata)
	}
}

func TestFlatDimensionMismatch(t *testing.T) {
	f, _, _ := newTestFlat(t, 3)
	ctx := context.Background()
	assert.Error(t, f.Add(ctx, []Entry{entry("bad", 1, 2)}))
	_, err := f.Search(ctx, []float32{1, 2}, 1)
	assert.Error(t, err)
}

func TestFlatPersistsAcrossReopen(t *testing.T) {
	f, indexPath, metaPath := newTestFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, f.Add(ctx, []Entry{entry("kept", 3, 4)}))

	reopened, err := NewFlat(2, indexPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())

	matches, err := reopened.Search(ctx, []float32{3, 4}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "kept", matches[0].Metadata["full_text"])
	assert.Equal(t, float32(0), matches[0].Score)
}

func TestFlatRecoversFromShortMetadata(t *testing.T) {
	// simulates a crash between the vector write and the metadata write:
	// the extra vector must be dropped on reload
	f, indexPath, metaPath := newTestFlat(t, 2)
	ctx := context.Background()
	require.NoError(t, f.Add(ctx, []Entry{entry("one", 1, 0), entry("two", 0, 1)}))

	short, err := json.Marshal([]Metadata{{"full_text": "one"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(metaPath, short, 0o644))

	reopened, err := NewFlat(2, indexPath, metaPath)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestFlatRejectsWrongDimensionFile(t *testing.T) {
	f, indexPath, metaPath := newTestFlat(t, 2)
	require.NoError(t, f.Add(context.Background(), []Entry{entry("a", 1, 2)}))

	_, err := NewFlat(3, indexPath, metaPath)
	assert.Error(t, err)
}

func TestFlatRejectsOversizedCountHeader(t *testing.T) {
	// a corrupt count header must fail validation instead of driving a
	// huge allocation
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bad.index")

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(2)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(1<<30)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, []float32{1, 2}))
	require.NoError(t, os.WriteFile(indexPath, buf.Bytes(), 0o644))

	_, err := NewFlat(2, indexPath, filepath.Join(dir, "metadata.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt index file")
}

func TestUnavailableShortCircuits(t *testing.T) {
	var idx Index = Unavailable{}
	err := idx.Add(context.Background(), []Entry{entry("x", 1)})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = idx.Search(context.Background(), []float32{1}, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}
