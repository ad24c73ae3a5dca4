// Package index provides an exact nearest-neighbor index over embedding
// vectors, ranked by squared Euclidean distance.
//
// Vectors and metadata records are stored as parallel sequences: the vector
// at position i belongs to the record at position i. The index is
// append-only; the only refresh is a rebuild.
package index

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/docrag/core"
)

// Flat is a brute-force index. Add takes an exclusive lock, Search and the
// accessors take a shared lock, so readers never observe a half-applied Add.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors []float32 // row-major, len(vectors) == dim * len(records)
	records []core.Metadata
}

// New creates an empty index whose dimension is fixed by the first Add.
func New() *Flat {
	return &Flat{}
}

// NewWithDimension creates an empty index with a fixed dimension.
func NewWithDimension(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d must be positive", core.ErrInvalidConfig, dim)
	}
	return &Flat{dim: dim}, nil
}

// Restore rebuilds an index from persisted contents. A dimension of 0 is
// accepted only for an empty index.
func Restore(dim int, vectors [][]float32, records []core.Metadata) (*Flat, error) {
	if dim == 0 && len(vectors) == 0 && len(records) == 0 {
		return New(), nil
	}
	f, err := NewWithDimension(dim)
	if err != nil {
		return nil, err
	}
	if err := f.Add(vectors, records); err != nil {
		return nil, err
	}
	return f, nil
}

// Add appends vectors and their metadata records. On the first call on an
// index without a fixed dimension the dimension is taken from the input.
// Nothing is appended if an error is returned.
func (f *Flat) Add(vectors [][]float32, records []core.Metadata) error {
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: %d vectors, %d records", core.ErrPairingMismatch, len(vectors), len(records))
	}
	if len(vectors) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dim, err := core.ValidateVectors(vectors, f.dim)
	if err != nil {
		return err
	}

	f.vectors = slices.Grow(f.vectors, dim*len(vectors))
	for _, v := range vectors {
		f.vectors = append(f.vectors, v...)
	}
	for _, rec := range records {
		f.records = append(f.records, rec.Clone())
	}
	f.dim = dim
	return nil
}

// Search returns the topK records closest to query, ordered by ascending
// squared Euclidean distance, ties broken by insertion order. If topK exceeds
// the number of stored vectors all of them are returned. Searching an empty
// index returns an empty result.
func (f *Flat) Search(query []float32, topK int) ([]core.SearchHit, error) {
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.records)
	if n == 0 {
		return []core.SearchHit{}, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", core.ErrDimensionMismatch, len(query), f.dim)
	}

	hits := make([]core.SearchHit, n)
	for i := range n {
		hits[i] = core.SearchHit{
			Index:    i,
			Distance: squaredL2(query, f.vectors[i*f.dim:(i+1)*f.dim]),
		}
	}

	slices.SortFunc(hits, func(a, b core.SearchHit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})

	hits = hits[:min(topK, n)]
	for i := range hits {
		hits[i].Metadata = f.records[hits[i].Index].Clone()
	}
	return hits, nil
}

// Len returns the number of stored vectors, which always equals the number
// of stored metadata records.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}

// Dimension returns the index dimension, or 0 if it is not yet fixed.
func (f *Flat) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// Contents returns copies of the dimension, vectors and records for
// persistence. It holds the exclusive lock, like Add.
func (f *Flat) Contents() (int, [][]float32, []core.Metadata) {
	f.mu.Lock()
	defer f.mu.Unlock()

	vectors := make([][]float32, len(f.records))
	records := make([]core.Metadata, len(f.records))
	for i := range f.records {
		vectors[i] = slices.Clone(f.vectors[i*f.dim : (i+1)*f.dim])
		records[i] = f.records[i].Clone()
	}
	return f.dim, vectors, records
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
