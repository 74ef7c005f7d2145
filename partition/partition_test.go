package partition

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/mllite/dmatrix"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func mustFrame(t *testing.T, series ...Series) *Frame {
	t.Helper()
	f, err := NewFrame(series...)
	require.NoError(t, err)
	return f
}

// TestNewFrame tests column validation.
func TestNewFrame(t *testing.T) {
	f := mustFrame(t,
		Vectors("values", [][]float64{{1, 2}, {3, 4}}),
		Floats("label", []float64{0, 1}),
	)
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Has("label"))
	assert.False(t, f.Has("weight"))
	assert.Equal(t, []string{"values", "label"}, f.Columns())

	_, err := NewFrame(Floats("a", []float64{1}), Floats("a", []float64{2}))
	assert.Error(t, err)
	_, err = NewFrame(Floats("a", []float64{1}), Floats("b", []float64{1, 2}))
	assert.Error(t, err)
	_, err = NewFrame(Floats("", []float64{1}))
	assert.Error(t, err)
}

// TestFrameFilterSelect tests row filtering and scalar selection.
func TestFrameFilterSelect(t *testing.T) {
	f := mustFrame(t,
		Floats("a", []float64{1, 2, 3}),
		Floats("b", []float64{4, 5, 6}),
		Bools("v", []bool{false, true, false}),
	)
	sub, err := f.Filter([]bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Len())

	m, err := sub.Select([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1, 6, 3}, m.RawMatrix().Data)

	_, err = f.Select([]string{"a", "missing"})
	assert.Error(t, err)
	_, err = f.Vector("v")
	assert.Error(t, err)
	_, err = f.Filter([]bool{true})
	assert.Error(t, err)
}

// TestStackSeries tests array stacking and ragged rejection.
func TestStackSeries(t *testing.T) {
	m, err := StackSeries(Vectors("values", [][]float64{{1, 2, 3}, {4, 5, 6}}))
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 6.0, m.At(1, 2))

	_, err = StackSeries(Vectors("values", [][]float64{{1, 2}, {3}}))
	var dimErr *scigoErrors.DimensionError
	assert.ErrorAs(t, err, &dimErr)

	_, err = StackSeries(Floats("label", []float64{1}))
	assert.Error(t, err)
}

// TestConcatOrNone tests row-wise concatenation.
func TestConcatOrNone(t *testing.T) {
	m, err := ConcatOrNone(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})
	m, err = ConcatOrNone([]*mat.Dense{a, b})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, m.RawMatrix().Data)

	tests := []struct {
		name   string
		blocks []*mat.Dense
	}{
		{"wider later block", []*mat.Dense{mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 3, []float64{2, 3, 4})}},
		{"narrower later block", []*mat.Dense{mat.NewDense(1, 3, []float64{1, 2, 3}), mat.NewDense(1, 1, []float64{4})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ConcatOrNone(tt.blocks)
			assert.Nil(t, m)
			var dimErr *scigoErrors.DimensionError
			require.True(t, scigoErrors.As(err, &dimErr))
			assert.Equal(t, tt.blocks[0].RawMatrix().Cols, dimErr.Expected)
		})
	}
}

// TestCreateDMatrixRejectsMixedRoleWidths tests that a role whose width
// changes between partitions is an error rather than a truncated column.
func TestCreateDMatrixRejectsMixedRoleWidths(t *testing.T) {
	scalarMargin := mustFrame(t,
		Vectors("values", [][]float64{{1, 2}, {3, 4}}),
		Floats("label", []float64{0, 1}),
		Floats("baseMargin", []float64{0.1, 0.2}),
	)
	vectorMargin := mustFrame(t,
		Vectors("values", [][]float64{{5, 6}, {7, 8}}),
		Floats("label", []float64{1, 0}),
		Vectors("baseMargin", [][]float64{{9, 9, 9}, {8, 8, 8}}),
	)

	tests := []struct {
		name        string
		featureCols []string
		frames      []*Frame
	}{
		{"dense scalar then vector", nil, []*Frame{scalarMargin, vectorMargin}},
		{"dense vector then scalar", nil, []*Frame{vectorMargin, scalarMargin}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, valid, err := CreateDMatrixFromPartitions(context.Background(), NewSliceIterator(tt.frames...), tt.featureCols)
			assert.Nil(t, train)
			assert.Nil(t, valid)
			var dimErr *scigoErrors.DimensionError
			require.True(t, scigoErrors.As(err, &dimErr))
			assert.Contains(t, err.Error(), "partition 1")
		})
	}

	// Scalar feature columns go through the quantile path with the same check.
	withFeatures := func(margin Series) *Frame {
		return mustFrame(t,
			Floats("a", []float64{1, 2}),
			Floats("b", []float64{3, 4}),
			Floats("label", []float64{0, 1}),
			margin,
		)
	}
	it := NewSliceIterator(
		withFeatures(Floats("baseMargin", []float64{0.1, 0.2})),
		withFeatures(Vectors("baseMargin", [][]float64{{9, 9}, {8, 8}})),
	)
	_, _, err := CreateDMatrixFromPartitions(context.Background(), it, []string{"a", "b"})
	var dimErr *scigoErrors.DimensionError
	require.True(t, scigoErrors.As(err, &dimErr))
	assert.Equal(t, 1, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)
}

// TestCachePartitionsWithoutValidation tests that every row is a training row.
func TestCachePartitionsWithoutValidation(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t, Vectors("values", [][]float64{{1}, {2}}), Floats("label", []float64{0, 1})),
		mustFrame(t, Vectors("values", [][]float64{{3}}), Floats("label", []float64{1})),
	)
	var roles []string
	c, err := CachePartitions(context.Background(), it, DefaultAlias, func(dst Bucket, f *Frame, role, column string) error {
		roles = append(roles, role)
		if !f.Has(column) {
			return nil
		}
		m, err := columnBlock(f, column)
		if err != nil {
			return err
		}
		dst[role] = append(dst[role], m)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, c.HasValidation)
	assert.Equal(t, 2, c.Partitions)
	assert.Equal(t, 3, c.Train.Rows())
	assert.Empty(t, c.Valid)
	assert.Equal(t, []string{"data", "label", "weight", "margin", "data", "label", "weight", "margin"}, roles)
}

// TestCachePartitionsMissingValidationLater tests the first-partition rule.
func TestCachePartitionsMissingValidationLater(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t, Vectors("values", [][]float64{{1}}), Bools("validationIndicator", []bool{false})),
		mustFrame(t, Vectors("values", [][]float64{{2}})),
	)
	_, err := CachePartitions(context.Background(), it, DefaultAlias, appendDense(roleWidths{}))
	require.Error(t, err)
	var pErr *scigoErrors.PartitionError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, 1, pErr.Index)
	assert.Equal(t, "validationIndicator", pErr.Column)
}

// TestCachePartitionsNonBoolValidation tests the bool requirement.
func TestCachePartitionsNonBoolValidation(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t, Vectors("values", [][]float64{{1}}), Floats("validationIndicator", []float64{1})),
	)
	_, err := CachePartitions(context.Background(), it, DefaultAlias, appendDense(roleWidths{}))
	var pErr *scigoErrors.PartitionError
	assert.ErrorAs(t, err, &pErr)
}

// TestCachePartitionsContextCanceled tests cancellation through the iterator.
func TestCachePartitionsContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it := NewSliceIterator(mustFrame(t, Vectors("values", [][]float64{{1}})))
	_, err := CachePartitions(ctx, it, DefaultAlias, appendDense(roleWidths{}))
	assert.ErrorIs(t, err, context.Canceled)
}

// TestCreateDMatrixDense tests the array-column path with validation split.
func TestCreateDMatrixDense(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t,
			Vectors("values", [][]float64{{1, 2}, {3, 4}, {5, 6}}),
			Floats("label", []float64{0, 1, 2}),
			Floats("weight", []float64{1, 2, 3}),
			Bools("validationIndicator", []bool{false, true, false}),
		),
		// every row of this partition is a validation row
		mustFrame(t,
			Vectors("values", [][]float64{{7, 8}}),
			Floats("label", []float64{3}),
			Floats("weight", []float64{4}),
			Bools("validationIndicator", []bool{true}),
		),
	)
	logs, restore := log.CaptureLogs(log.LevelDebug)
	t.Cleanup(restore)

	train, valid, err := CreateDMatrixFromPartitions(context.Background(), it, nil)
	require.NoError(t, err)
	require.NotNil(t, valid)

	assert.Len(t, logs.FindAll("partition cached"), 2)
	cached, ok := logs.Find("partitions cached")
	require.True(t, ok)
	assert.Equal(t, "partition", cached.Fields[log.ComponentKey])
	assert.Equal(t, 2, cached.Fields[log.PartitionsKey])
	assert.Equal(t, 2, cached.Fields[log.SamplesKey])
	assert.Equal(t, 2, cached.Fields[log.ValidationRowsKey])
	created, ok := logs.Find("matrices created")
	require.True(t, ok)
	assert.Equal(t, 2, created.Fields[log.FeaturesKey])

	assert.Equal(t, 2, train.NumRow())
	assert.Equal(t, 2, train.NumCol())
	assert.Equal(t, []float64{0, 2}, train.Label())
	assert.Equal(t, []float64{1, 3}, train.Weight())
	assert.Equal(t, 5.0, train.At(1, 0))

	assert.Equal(t, 2, valid.NumRow())
	assert.Equal(t, train.NumCol(), valid.NumCol())
	assert.Equal(t, []float64{1, 3}, valid.Label())
	assert.Equal(t, 8.0, valid.At(1, 1))
}

// TestCreateDMatrixNoValidationRows tests that the validation matrix is nil.
func TestCreateDMatrixNoValidationRows(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t,
			Vectors("values", [][]float64{{1}, {2}}),
			Floats("label", []float64{0, 1}),
			Bools("validationIndicator", []bool{false, false}),
		),
	)
	train, valid, err := CreateDMatrixFromPartitions(context.Background(), it, nil)
	require.NoError(t, err)
	assert.Nil(t, valid)
	assert.Equal(t, 2, train.NumRow())
}

// TestCreateDMatrixFeatureMismatch tests the constant feature count check.
func TestCreateDMatrixFeatureMismatch(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t, Vectors("values", [][]float64{{1, 2}})),
		mustFrame(t, Vectors("values", [][]float64{{1, 2, 3}})),
	)
	_, _, err := CreateDMatrixFromPartitions(context.Background(), it, nil)
	var dimErr *scigoErrors.DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

// TestCreateDMatrixNoTrainingRows tests the all-validation error.
func TestCreateDMatrixNoTrainingRows(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t,
			Vectors("values", [][]float64{{1}}),
			Bools("validationIndicator", []bool{true}),
		),
	)
	_, _, err := CreateDMatrixFromPartitions(context.Background(), it, nil)
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyData)
}

// TestCreateDMatrixFeatureCols tests the quantile path over scalar columns.
func TestCreateDMatrixFeatureCols(t *testing.T) {
	it := NewSliceIterator(
		mustFrame(t,
			Floats("a", []float64{1, 2, 3}),
			Floats("b", []float64{-1, 5, 6}),
			Floats("label", []float64{0, 1, 0}),
			Floats("baseMargin", []float64{0.5, 0.5, 0.5}),
			Bools("validationIndicator", []bool{false, false, true}),
		),
		mustFrame(t,
			Floats("a", []float64{4}),
			Floats("b", []float64{7}),
			Floats("label", []float64{1}),
			Floats("baseMargin", []float64{0.5}),
			Bools("validationIndicator", []bool{false}),
		),
	)
	train, valid, err := CreateDMatrixFromPartitions(context.Background(), it, []string{"a", "b"},
		dmatrix.WithMissing(-1), dmatrix.WithMaxBin(8), dmatrix.WithFeatureNames([]string{"a", "b"}))
	require.NoError(t, err)

	assert.Equal(t, 3, train.NumRow())
	assert.Equal(t, 2, train.NumCol())
	assert.Equal(t, []float64{0, 1, 1}, train.Label())
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, train.BaseMargin())
	assert.True(t, math.IsNaN(train.At(0, 1)))
	assert.NotNil(t, train.Cuts())
	assert.Equal(t, []string{"a", "b"}, train.FeatureNames())

	require.NotNil(t, valid)
	assert.Equal(t, 1, valid.NumRow())
	assert.Nil(t, valid.Cuts())
}

// TestPartIter tests iteration and reset over cached blocks.
func TestPartIter(t *testing.T) {
	b := Bucket{
		RoleData:  {mat.NewDense(1, 1, []float64{1}), mat.NewDense(2, 1, []float64{2, 3})},
		RoleLabel: {mat.NewDense(1, 1, []float64{0}), mat.NewDense(2, 1, []float64{1, 0})},
	}
	p := NewPartIter(b)
	var labels []float64
	for {
		ok, err := p.Next(func(batch dmatrix.Batch) error {
			assert.Nil(t, batch.Weight)
			labels = append(labels, batch.Label...)
			return nil
		})
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	assert.Equal(t, []float64{0, 1, 0}, labels)

	p.Reset()
	ok, err := p.Next(func(dmatrix.Batch) error { return io.ErrUnexpectedEOF })
	assert.False(t, ok)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// TestWriteReadDir tests the partition file round trip, plain and snappy.
func TestWriteReadDir(t *testing.T) {
	dir := t.TempDir()
	X := mat.NewDense(6, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	y := []float64{0, 1, 0, 1, 0, 1}

	frames, err := SplitRows(X, y, 3, 0.5, 7)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	flagged := 0
	for i, f := range frames {
		require.NoError(t, WriteFile(filepath.Join(dir, FileName(i, i%2 == 1)), f, i%2 == 1))
		v, err := f.Bools(DefaultAlias.Valid)
		require.NoError(t, err)
		for _, b := range v {
			if b {
				flagged++
			}
		}
	}
	assert.Equal(t, 3, flagged)

	it, err := ReadDir(context.Background(), dir, DefaultReaderConfig())
	require.NoError(t, err)

	rows := 0
	for {
		f, err := it.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		vals, ok := f.Series("values")
		require.True(t, ok)
		assert.Equal(t, KindVector, vals.Kind())
		for k, v := range vals.VectorValues() {
			assert.Equal(t, mat.Row(nil, rows+k, X), v)
		}
		rows += f.Len()
	}
	assert.Equal(t, 6, rows)
}

// TestReadDirEmpty tests the error for a directory without partitions.
func TestReadDirEmpty(t *testing.T) {
	_, err := ReadDir(context.Background(), t.TempDir(), DefaultReaderConfig())
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyData)
}

// TestReadDirCanceled tests that a canceled read reports where it stopped.
func TestReadDirCanceled(t *testing.T) {
	dir := t.TempDir()
	frames, err := SplitRows(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), []float64{0, 1, 0, 1}, 2, 0, 1)
	require.NoError(t, err)
	for i, f := range frames {
		require.NoError(t, WriteFile(filepath.Join(dir, FileName(i, false)), f, false))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReadDir(ctx, dir, DefaultReaderConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, fmt.Sprintf("%+v", err), "ReadDir")
}

// TestSplitRowsValidation tests argument checks.
func TestSplitRowsValidation(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, 2})
	_, err := SplitRows(X, []float64{1}, 1, 0, 1)
	assert.Error(t, err)
	_, err = SplitRows(X, []float64{1, 2}, 3, 0, 1)
	assert.Error(t, err)
	_, err = SplitRows(X, []float64{1, 2}, 1, 1, 1)
	assert.Error(t, err)

	frames, err := SplitRows(X, []float64{1, 2}, 1, 0, 1)
	require.NoError(t, err)
	assert.False(t, frames[0].Has(DefaultAlias.Valid))
}

// TestSplitRowsUneven tests that every requested partition is produced.
func TestSplitRowsUneven(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := []float64{1, 2, 3, 4, 5}

	frames, err := SplitRows(X, y, 4, 0, 1)
	require.NoError(t, err)
	require.Len(t, frames, 4)
	sizes := make([]int, len(frames))
	var labels []float64
	for i, f := range frames {
		sizes[i] = f.Len()
		l, err := f.Vector(DefaultAlias.Label)
		require.NoError(t, err)
		labels = append(labels, l...)
	}
	assert.Equal(t, []int{2, 1, 1, 1}, sizes)
	assert.Equal(t, y, labels)
}
