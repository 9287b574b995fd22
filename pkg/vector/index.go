package vector

import (
	"math"
	"sort"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Index is a flat inner-product index over unit vectors. Rows are append-only
// and never reordered, so row i always corresponds to the i-th record of an
// insertion-ordered ledger. The index is not safe for concurrent use; the
// owning store serializes access.
type Index struct {
	dim     int
	vectors [][]float32
}

// New creates an empty index with no fixed dimension. The first Add fixes
// the dimension for the lifetime of the index.
func New() *Index {
	return &Index{}
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	return len(x.vectors)
}

// Dimension returns the fixed dimension, or 0 if no vector was added yet.
func (x *Index) Dimension() int {
	return x.dim
}

// Add appends a vector. The first insert fixes the index dimension; any
// later vector of a different length fails with ErrDimensionMismatch and
// leaves the index unchanged.
func (x *Index) Add(vec []float32) error {
	if len(vec) == 0 {
		return goerr.Wrap(model.ErrDimensionMismatch, "empty vector")
	}
	if x.dim == 0 {
		x.dim = len(vec)
	}
	if len(vec) != x.dim {
		return goerr.Wrap(model.ErrDimensionMismatch, "vector length disagrees with index dimension",
			goerr.V("dimension", x.dim), goerr.V("length", len(vec)))
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	x.vectors = append(x.vectors, stored)
	return nil
}

// Hit is a single search result: the row position of the matched vector and
// its inner product with the query.
type Hit struct {
	Position int
	Score    float64
}

// Search returns up to k rows with the highest inner product to query,
// highest first. Ties are broken by insertion order (earlier row wins) so
// results are deterministic. An empty index returns no hits.
func (x *Index) Search(query []float32, k int) []Hit {
	if len(x.vectors) == 0 || k <= 0 || len(query) != x.dim {
		return nil
	}

	hits := make([]Hit, len(x.vectors))
	for i, vec := range x.vectors {
		hits[i] = Hit{Position: i, Score: dot(query, vec)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize returns a unit-L2-norm copy of vec. A zero vector is returned
// as-is: it has no direction to normalize to.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	out := make([]float32, len(vec))
	copy(out, vec)

	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}
