package vector_test

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/vector"
	"github.com/m-mizutani/gt"
)

func TestIndexAddFixesDimension(t *testing.T) {
	x := vector.New()
	gt.Equal(t, x.Dimension(), 0)

	gt.NoError(t, x.Add([]float32{1, 0, 0}))
	gt.Equal(t, x.Dimension(), 3)
	gt.Equal(t, x.Len(), 1)

	err := x.Add([]float32{1, 0})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDimensionMismatch))
	gt.Equal(t, x.Len(), 1)
}

func TestIndexSearchRanksByInnerProduct(t *testing.T) {
	x := vector.New()
	gt.NoError(t, x.Add([]float32{1, 0}))
	gt.NoError(t, x.Add([]float32{0, 1}))
	gt.NoError(t, x.Add([]float32{0.6, 0.8}))

	hits := x.Search([]float32{0, 1}, 2)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].Position, 1)
	gt.Equal(t, hits[1].Position, 2)
}

func TestIndexSearchTieBreakByInsertionOrder(t *testing.T) {
	x := vector.New()
	gt.NoError(t, x.Add([]float32{0, 1}))
	gt.NoError(t, x.Add([]float32{1, 0}))
	gt.NoError(t, x.Add([]float32{1, 0}))

	// Both copies of [1,0] score identically; the earlier row must win.
	hits := x.Search([]float32{1, 0}, 2)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].Position, 1)
	gt.Equal(t, hits[1].Position, 2)
}

func TestIndexSearchEmpty(t *testing.T) {
	x := vector.New()
	gt.A(t, x.Search([]float32{1, 0}, 5)).Length(0)
}

func TestIndexSearchKLargerThanSize(t *testing.T) {
	x := vector.New()
	gt.NoError(t, x.Add([]float32{1, 0}))

	hits := x.Search([]float32{1, 0}, 10)
	gt.A(t, hits).Length(1)
}

func TestNormalize(t *testing.T) {
	v := vector.Normalize([]float32{3, 4})

	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	gt.True(t, math.Abs(norm-1.0) < 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := vector.Normalize([]float32{0, 0, 0})
	gt.Equal(t, v, []float32{0, 0, 0})
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.index")

	x := vector.New()
	gt.NoError(t, x.Add([]float32{1, 0, 0}))
	gt.NoError(t, x.Add([]float32{0, 1, 0}))
	gt.NoError(t, x.Save(path))

	loaded, err := vector.Load(path)
	gt.NoError(t, err)
	gt.Equal(t, loaded.Dimension(), 3)
	gt.Equal(t, loaded.Len(), 2)

	hits := loaded.Search([]float32{0, 1, 0}, 1)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].Position, 1)
}

func TestIndexLoadMissingFile(t *testing.T) {
	loaded, err := vector.Load(filepath.Join(t.TempDir(), "absent.index"))
	gt.NoError(t, err)
	gt.Equal(t, loaded.Len(), 0)
	gt.Equal(t, loaded.Dimension(), 0)
}
