package dmatrix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// sliceIter serves fixed batches.
type sliceIter struct {
	batches []Batch
	pos     int
	resets  int
}

func (s *sliceIter) Next(input func(Batch) error) (bool, error) {
	if s.pos >= len(s.batches) {
		return false, nil
	}
	b := s.batches[s.pos]
	s.pos++
	return true, input(b)
}

func (s *sliceIter) Reset() {
	s.pos = 0
	s.resets++
}

// TestComputeCutsFewDistinct tests one bin per distinct value.
func TestComputeCutsFewDistinct(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{3, 1, 2, 1, math.NaN()})
	c := ComputeCuts(X, nil, 16)

	require.Equal(t, 1, c.NumFeature())
	require.Equal(t, 3, c.NumBins(0))
	assert.Equal(t, 2.0, c.Values[0][0])
	assert.Equal(t, 3.0, c.Values[0][1])
	assert.Greater(t, c.Values[0][2], 3.0)
	assert.Equal(t, 1.0, c.Min[0])

	assert.Equal(t, 0, c.Search(0, 1))
	assert.Equal(t, 1, c.Search(0, 2))
	assert.Equal(t, 2, c.Search(0, 3))
	assert.Equal(t, -1, c.Search(0, math.NaN()))
	// values beyond the sketch clamp to the last bin
	assert.Equal(t, 2, c.Search(0, 100))
}

// TestComputeCutsQuantiles tests that many distinct values are capped at maxBin.
func TestComputeCutsQuantiles(t *testing.T) {
	n := 1000
	X := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
	}
	c := ComputeCuts(X, nil, 10)
	assert.LessOrEqual(t, c.NumBins(0), 10)
	assert.GreaterOrEqual(t, c.NumBins(0), 8)
	for b := 1; b < c.NumBins(0); b++ {
		assert.Less(t, c.Values[0][b-1], c.Values[0][b])
	}
	// every value lands in a bin and bins are roughly balanced
	counts := make([]int, c.NumBins(0))
	for i := 0; i < n; i++ {
		counts[c.Search(0, float64(i))]++
	}
	for _, cnt := range counts {
		assert.InDelta(t, n/10, cnt, 60)
	}
}

// TestComputeCutsAllMissing tests a feature without present values.
func TestComputeCutsAllMissing(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, math.NaN(), 2, math.NaN()})
	c := ComputeCuts(X, nil, 4)
	assert.Equal(t, 0, c.NumBins(1))
	assert.Equal(t, -1, c.Search(1, 1))
	assert.Equal(t, 2, c.TotalBins())
}

// TestNewQuantile tests the two-pass iterator constructor.
func TestNewQuantile(t *testing.T) {
	it := &sliceIter{batches: []Batch{
		{Data: mat.NewDense(2, 2, []float64{1, 2, 3, 4}), Label: []float64{0, 1}},
		{Data: mat.NewDense(1, 2, []float64{5, -1}), Label: []float64{1}},
	}}

	d, err := NewQuantile(it, WithMissing(-1), WithMaxBin(4))
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumRow())
	assert.Equal(t, 2, d.NumCol())
	assert.Equal(t, []float64{0, 1, 1}, d.Label())
	assert.Nil(t, d.Weight())
	assert.True(t, math.IsNaN(d.At(2, 1)))
	require.NotNil(t, d.Cuts())
	assert.Equal(t, 3, d.Cuts().NumBins(0))
	assert.GreaterOrEqual(t, it.resets, 2)
}

// TestNewQuantileRejectsInconsistentBatches tests shape and meta checks.
func TestNewQuantileRejectsInconsistentBatches(t *testing.T) {
	it := &sliceIter{batches: []Batch{
		{Data: mat.NewDense(1, 2, []float64{1, 2})},
		{Data: mat.NewDense(1, 3, []float64{1, 2, 3})},
	}}
	_, err := NewQuantile(it)
	assert.Error(t, err)

	it = &sliceIter{batches: []Batch{
		{Data: mat.NewDense(1, 2, []float64{1, 2}), Label: []float64{1}},
		{Data: mat.NewDense(1, 2, []float64{1, 2})},
	}}
	_, err = NewQuantile(it)
	assert.Error(t, err)

	_, err = NewQuantile(&sliceIter{})
	assert.Error(t, err)
}
