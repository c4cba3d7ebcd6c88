package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	assert.True(t, None.IsNone())
	assert.Equal(t, "None", None.String())

	for _, id := range []int64{0, -1, 42} {
		l := Some(id)
		got, ok := l.Get()
		assert.True(t, ok)
		assert.Equal(t, id, got)
		assert.False(t, l.IsNone())
	}
	assert.Equal(t, "Some(7)", Some(7).String())
}

func TestSearchResult(t *testing.T) {
	r := NewSearchResult(2, 3)
	assert.Equal(t, 2, r.Queries())

	d, l := r.Chunk(1)
	assert.Len(t, d, 3)
	for i := range d {
		assert.Equal(t, float32(EmptyDistance), d[i])
		assert.True(t, l[i].IsNone())
	}

	d[0] = 1.5
	l[0] = Some(9)
	assert.Equal(t, float32(1.5), r.Distances[3])
	assert.Equal(t, Some(9), r.Labels[3])

	assert.Equal(t, 0, NewSearchResult(4, 0).Queries())
}

func TestValidateQueries(t *testing.T) {
	assert.NoError(t, ValidateQueries(nil, 4, 1))
	assert.NoError(t, ValidateQueries(make([]float32, 8), 4, 0))
	assert.ErrorIs(t, ValidateQueries(make([]float32, 4), 4, -1), ErrInvalidK)

	err := ValidateQueries(make([]float32, 6), 4, 1)
	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 6, dm.Actual)
}

func TestMetric(t *testing.T) {
	assert.Equal(t, "L2", MetricL2.String())
	assert.Equal(t, "InnerProduct", MetricInnerProduct.String())
	assert.Equal(t, "Cosine", MetricCosine.String())
	assert.Equal(t, "Unknown(9)", Metric(9).String())
	assert.True(t, MetricCosine.Valid())
	assert.False(t, Metric(9).Valid())
}
