// Package index implements an in-memory flat vector index with
// brute-force squared-L2 nearest-neighbor search.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrIndexEmpty is returned by Search before any corpus has been ingested.
var ErrIndexEmpty = errors.New("vector index is empty: no documents have been ingested")

// Entry is one chunk to be indexed: its text and its embedding vector.
type Entry struct {
	DocumentID string
	Seq        int
	Text       string
	Vector     []float32
}

// Result is one search hit, ordered by ascending squared Euclidean distance.
type Result struct {
	Text     string
	Distance float32
}

// Index holds exactly one generation of the corpus. Rebuild replaces the
// whole generation under the write lock; Search reads under the read lock,
// so a reader observes either the old or the new corpus, never a mix.
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	texts   []string
	built   bool
}

func New() *Index {
	return &Index{}
}

// Rebuild atomically replaces the entire index contents. All entry vectors
// must share one dimension. On error the previous contents are untouched.
func (ix *Index) Rebuild(entries []Entry) error {
	vectors := make([][]float32, len(entries))
	texts := make([]string, len(entries))

	dim := 0
	for i, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %d has an empty vector", i)
		}
		if dim == 0 {
			dim = len(e.Vector)
		} else if len(e.Vector) != dim {
			return fmt.Errorf("entry %d has dimension %d, want %d", i, len(e.Vector), dim)
		}
		v := make([]float32, dim)
		copy(v, e.Vector)
		vectors[i] = v
		texts[i] = e.Text
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dim = dim
	ix.vectors = vectors
	ix.texts = texts
	ix.built = true
	return nil
}

// Search returns the min(k, size) entries nearest to query by squared L2
// distance, ascending, ties broken by insertion order. Searching an index
// that has never been built returns ErrIndexEmpty.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.built {
		return nil, ErrIndexEmpty
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return []Result{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(query), ix.dim)
	}

	distances := make([]float32, len(ix.vectors))
	order := make([]int, len(ix.vectors))
	for i, v := range ix.vectors {
		distances[i] = squaredL2(query, v)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return distances[order[a]] < distances[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		j := order[i]
		results[i] = Result{Text: ix.texts[j], Distance: distances[j]}
	}
	return results, nil
}

// Size returns the number of indexed entries.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
