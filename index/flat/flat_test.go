package flat

import (
	"context"
	"math/rand"
	"testing"

	"github.com/hupe1980/vecgate/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlat(t *testing.T, dim int, metric index.Metric, vectors []float32, labels []int64) *Flat {
	t.Helper()
	f, err := New(vectors, labels, func(o *Options) {
		o.Dimension = dim
		o.Metric = metric
	})
	require.NoError(t, err)
	return f
}

func labelIDs(labels []index.Label) []int64 {
	ids := make([]int64, 0, len(labels))
	for _, l := range labels {
		if id, ok := l.Get(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestNew(t *testing.T) {
	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := New([]float32{1, 2, 3, 4}, nil, func(o *Options) { o.Dimension = 3 })
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("ZeroDimension", func(t *testing.T) {
		_, err := New(nil, nil)
		assert.Error(t, err)
	})

	t.Run("LabelCount", func(t *testing.T) {
		_, err := New([]float32{1, 2}, []int64{1, 2}, func(o *Options) { o.Dimension = 2 })
		assert.Error(t, err)
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		_, err := New([]float32{1, 2}, nil, func(o *Options) {
			o.Dimension = 2
			o.Metric = index.Metric(42)
		})
		assert.ErrorIs(t, err, index.ErrUnsupportedIndex)
	})

	t.Run("DefaultLabels", func(t *testing.T) {
		f := newFlat(t, 2, index.MetricL2, []float32{1, 2, 3, 4, 5, 6}, nil)
		assert.Equal(t, []int64{0, 1, 2}, f.labels)
		assert.Equal(t, 3, f.Len())
		assert.Equal(t, 2, f.Dimension())
		assert.Equal(t, "Flat", f.Name())
	})
}

func TestFlat(t *testing.T) {
	vectors := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}

	t.Run("Search", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)

		res, err := f.Search([]float32{0, 0, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []index.Label{index.Some(0), index.Some(1)}, res.Labels)
		assert.Equal(t, []float32{14, 77}, res.Distances)
	})

	t.Run("BatchOrder", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)

		res, err := f.Search([]float32{7, 8, 9, 1, 2, 3}, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Queries())
		assert.Equal(t, []index.Label{index.Some(2), index.Some(0)}, res.Labels)
		assert.Equal(t, []float32{0, 0}, res.Distances)
	})

	t.Run("KLargerThanIndex", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)

		res, err := f.Search([]float32{0, 0, 0}, 5)
		require.NoError(t, err)
		require.Len(t, res.Labels, 5)
		assert.Equal(t, []int64{0, 1, 2}, labelIDs(res.Labels))
		assert.True(t, res.Labels[3].IsNone())
		assert.True(t, res.Labels[4].IsNone())
		assert.Equal(t, float32(index.EmptyDistance), res.Distances[4])
	})

	t.Run("ZeroK", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)

		res, err := f.Search([]float32{0, 0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, res.Labels)
		assert.Empty(t, res.Distances)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)

		res, err := f.Search(nil, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Queries())
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)

		_, err := f.Search([]float32{1, 2}, 1)
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)

		_, err = f.Search([]float32{1, 2, 3}, -1)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("CustomLabels", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, []int64{-5, 0, 1 << 40})

		res, err := f.Search([]float32{7, 8, 9}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{1 << 40, 0, -5}, labelIDs(res.Labels))
	})

	t.Run("Tombstone", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)
		assert.True(t, f.Tombstone(0))
		assert.False(t, f.Tombstone(99))
		assert.Equal(t, 2, f.Len())
		assert.Equal(t, 3, f.Rows())

		res, err := f.Search([]float32{0, 0, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, labelIDs(res.Labels))
		assert.True(t, res.Labels[2].IsNone())
	})

	t.Run("Cancelled", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.SearchContext(ctx, []float32{0, 0, 0, 1, 1, 1}, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Vector", func(t *testing.T) {
		f := newFlat(t, 3, index.MetricL2, vectors, nil)
		v, ok := f.Vector(1)
		require.True(t, ok)
		assert.Equal(t, []float32{4, 5, 6}, v)

		_, ok = f.Vector(3)
		assert.False(t, ok)
	})
}

func TestMetrics(t *testing.T) {
	vectors := []float32{
		1, 0,
		0, 1,
		2, 0,
	}

	t.Run("InnerProduct", func(t *testing.T) {
		f := newFlat(t, 2, index.MetricInnerProduct, vectors, nil)

		res, err := f.Search([]float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 0}, labelIDs(res.Labels))
		assert.Equal(t, []float32{-2, -1}, res.Distances)
	})

	t.Run("Cosine", func(t *testing.T) {
		f := newFlat(t, 2, index.MetricCosine, vectors, nil)

		res, err := f.Search([]float32{3, 0}, 3)
		require.NoError(t, err)
		// Rows 0 and 2 are parallel to the query; the tie breaks on row.
		assert.Equal(t, []int64{0, 2, 1}, labelIDs(res.Labels))
		assert.InDelta(t, 0, res.Distances[0], 1e-6)
		assert.InDelta(t, 0, res.Distances[1], 1e-6)
		assert.InDelta(t, 1, res.Distances[2], 1e-6)
	})

	t.Run("CosineZeroQuery", func(t *testing.T) {
		f := newFlat(t, 2, index.MetricCosine, vectors, nil)

		res, err := f.Search([]float32{0, 0}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1, res.Distances[0], 1e-6)
	})
}

func TestParallelMatchesSequential(t *testing.T) {
	const dim, rows, nq, k = 16, 200, 37, 5

	rng := rand.New(rand.NewSource(42))
	vectors := make([]float32, rows*dim)
	for i := range vectors {
		vectors[i] = rng.Float32()
	}
	queries := make([]float32, nq*dim)
	for i := range queries {
		queries[i] = rng.Float32()
	}

	seq, err := New(vectors, nil, func(o *Options) {
		o.Dimension = dim
		o.Parallelism = 1
	})
	require.NoError(t, err)

	par, err := New(vectors, nil, func(o *Options) {
		o.Dimension = dim
		o.Parallelism = 8
	})
	require.NoError(t, err)

	want, err := seq.Search(queries, k)
	require.NoError(t, err)
	got, err := par.Search(queries, k)
	require.NoError(t, err)

	assert.Equal(t, want, got)

	// Each chunk is ascending.
	for i := 0; i < nq; i++ {
		d, _ := got.Chunk(i)
		for j := 1; j < k; j++ {
			assert.LessOrEqual(t, d[j-1], d[j])
		}
	}
}
