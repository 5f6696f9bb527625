package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Flat is a local brute-force Euclidean index with a JSON metadata sidecar,
// index-aligned with insertion order. Single writer, multiple readers.
// Searches pad with ID -1 sentinels when the index holds fewer than k
// vectors, which callers are expected to filter.
type Flat struct {
	mu           sync.RWMutex
	dim          int
	vectors      [][]float32
	metadata     []Metadata
	indexPath    string
	metadataPath string
}

// NewFlat opens (or creates empty) a flat index with vectors of dimension
// dim, loading any previously persisted state from indexPath/metadataPath.
func NewFlat(dim int, indexPath, metadataPath string) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	f := &Flat{dim: dim, indexPath: indexPath, metadataPath: metadataPath}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Flat) Metric() Metric { return Euclidean }

// Len reports the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Add appends entries and persists both files before returning, so the
// metadata table can never outgrow the vector table across restarts.
func (f *Flat) Add(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != f.dim {
			return fmt.Errorf("vector dimension %d, index expects %d", len(e.Vector), f.dim)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		vec := make([]float32, f.dim)
		copy(vec, e.Vector)
		f.vectors = append(f.vectors, vec)
		f.metadata = append(f.metadata, e.Metadata)
	}
	return f.persistLocked()
}

// Search returns exactly k matches ordered by ascending L2 distance,
// padding with ID -1 / nil metadata sentinels past the table length.
func (f *Flat) Search(_ context.Context, vec []float32, k int) ([]Match, error) {
	if len(vec) != f.dim {
		return nil, fmt.Errorf("query dimension %d, index expects %d", len(vec), f.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	type scored struct {
		id   int64
		dist float32
	}
	all := make([]scored, len(f.vectors))
	for i, v := range f.vectors {
		all[i] = scored{id: int64(i), dist: l2(v, vec)}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })

	matches := make([]Match, 0, k)
	for i := 0; i < k; i++ {
		if i >= len(all) {
			matches = append(matches, Match{ID: -1})
			continue
		}
		var meta Metadata
		if id := all[i].id; id >= 0 && id < int64(len(f.metadata)) {
			meta = f.metadata[id]
		}
		matches = append(matches, Match{ID: all[i].id, Score: all[i].dist, Metadata: meta})
	}
	return matches, nil
}

func l2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// Binary index file layout: uint32 dim, uint32 count, count*dim little
// endian float32.

func (f *Flat) load() error {
	raw, err := os.ReadFile(f.indexPath)
	if os.IsNotExist(err) {
		return nil // fresh index
	}
	if err != nil {
		return err
	}
	r := bytes.NewReader(raw)
	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("corrupt index file %s: %w", f.indexPath, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("corrupt index file %s: %w", f.indexPath, err)
	}
	if int(dim) != f.dim {
		return fmt.Errorf("index file dimension %d, configured %d", dim, f.dim)
	}
	// the count header is untrusted input; bound it by the bytes that are
	// actually in the file before allocating
	if int64(count) > int64(r.Len())/(int64(dim)*4) {
		return fmt.Errorf("corrupt index file %s: count %d exceeds file size", f.indexPath, count)
	}
	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, &vec); err != nil {
			return fmt.Errorf("corrupt index file %s: %w", f.indexPath, err)
		}
		vectors = append(vectors, vec)
	}

	var metadata []Metadata
	metaRaw, err := os.ReadFile(f.metadataPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(metaRaw, &metadata); err != nil {
			return fmt.Errorf("corrupt metadata file %s: %w", f.metadataPath, err)
		}
	}

	// The vector file is written before the metadata file, so a crash
	// between the two leaves trailing vectors with no metadata row.
	// Drop the tail from whichever table is longer.
	if len(metadata) > len(vectors) {
		metadata = metadata[:len(vectors)]
	}
	if len(vectors) > len(metadata) {
		vectors = vectors[:len(metadata)]
	}
	f.vectors = vectors
	f.metadata = metadata
	return nil
}

func (f *Flat) persistLocked() error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(f.dim)); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return err
	}
	for _, vec := range f.vectors {
		if err := binary.Write(&buf, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	if err := writeAtomic(f.indexPath, buf.Bytes()); err != nil {
		return err
	}

	metaRaw, err := json.Marshal(f.metadata)
	if err != nil {
		return err
	}
	return writeAtomic(f.metadataPath, metaRaw)
}

// writeAtomic goes through a temp file and rename so readers of the old
// file never observe a partial write.
func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
