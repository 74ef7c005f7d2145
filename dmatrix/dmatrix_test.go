package dmatrix

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// TestNew tests construction with meta info and length validation.
func TestNew(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})

	d, err := New(X, WithLabel([]float64{0, 1, 0}), WithWeight([]float64{1, 2, 1}), WithFeatureNames([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumRow())
	assert.Equal(t, 2, d.NumCol())
	assert.Equal(t, []float64{0, 1, 0}, d.Label())
	assert.Equal(t, []float64{1, 2, 1}, d.Weight())
	assert.Equal(t, []string{"a", "b"}, d.FeatureNames())
	assert.Equal(t, DefaultMaxBin, d.MaxBin())

	// data is copied
	X.Set(0, 0, 100)
	assert.Equal(t, 1.0, d.At(0, 0))

	_, err = New(X, WithLabel([]float64{1}))
	var dimErr *scigoErrors.DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 1, dimErr.Got)

	_, err = New(X, WithWeight([]float64{1, -1, 1}))
	var valErr *scigoErrors.ValidationError
	assert.ErrorAs(t, err, &valErr)

	_, err = New(X, WithFeatureNames([]string{"a"}))
	assert.Error(t, err)
}

// TestNewMissing tests that the missing marker becomes NaN.
func TestNewMissing(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, -999, -999, 4})
	d, err := New(X, WithMissing(-999))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(d.At(0, 1)))
	assert.True(t, math.IsNaN(d.At(1, 0)))
	assert.Equal(t, 4.0, d.At(1, 1))
}

// TestFromMat tests the row-major buffer constructor.
func TestFromMat(t *testing.T) {
	buf := []float64{0, 1, 2, 3, 4, 5}
	d, err := FromMat(buf, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, d.NumRow())
	assert.Equal(t, 3, d.NumCol())
	assert.Equal(t, 3.0, d.At(1, 0))
	assert.True(t, math.IsNaN(d.At(1, 1)))

	// caller's buffer is untouched
	assert.Equal(t, 4.0, buf[4])

	_, err = FromMat(buf, 4, 2, math.NaN())
	assert.Error(t, err)
	_, err = FromMat(nil, 0, 2, math.NaN())
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyData)
}

// TestSetFloatInfo tests every settable field and the unknown-field error.
func TestSetFloatInfo(t *testing.T) {
	d, err := New(mat.NewDense(2, 1, []float64{1, 2}))
	require.NoError(t, err)

	require.NoError(t, d.SetFloatInfo(FieldLabel, []float64{1, 0}))
	require.NoError(t, d.SetFloatInfo(FieldWeight, []float64{0.5, 0.5}))
	require.NoError(t, d.SetFloatInfo(FieldBaseMargin, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}))
	assert.Equal(t, 3, d.BaseMarginGroups())

	assert.Error(t, d.SetFloatInfo(FieldBaseMargin, []float64{1, 2, 3}))
	assert.Error(t, d.SetFloatInfo("group", []float64{1, 1}))

	require.NoError(t, d.SetFloatInfo(FieldBaseMargin, nil))
	assert.Equal(t, 0, d.BaseMarginGroups())
}

// TestSlice tests row selection with meta info.
func TestSlice(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	d, err := New(X,
		WithLabel([]float64{10, 20, 30}),
		WithBaseMargin([]float64{1, 1, 2, 2, 3, 3}),
	)
	require.NoError(t, err)

	s, err := d.Slice([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumRow())
	assert.Equal(t, 5.0, s.At(0, 0))
	assert.Equal(t, []float64{30, 10}, s.Label())
	assert.Equal(t, []float64{3, 3, 1, 1}, s.BaseMargin())
	assert.Nil(t, s.Weight())

	_, err = d.Slice([]int{3})
	assert.Error(t, err)
}

// TestFromURI tests CSV loading with label column and header.
func TestFromURI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "f0,y,f1\n1.5,0,2\n,1,3\n4,2,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	d, err := FromURI(path + "?format=csv&label_column=1&header=true")
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumRow())
	assert.Equal(t, 2, d.NumCol())
	assert.Equal(t, []float64{0, 1, 2}, d.Label())
	assert.Equal(t, []string{"f0", "f1"}, d.FeatureNames())
	assert.True(t, math.IsNaN(d.At(1, 0)))
	assert.True(t, math.IsNaN(d.At(2, 1)))
	assert.Equal(t, 1.5, d.At(0, 0))
}

// TestFromURINoLabel tests that without label_column every column is a feature.
func TestFromURINoLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2,3\n4,5,6\n"), 0o600))

	d, err := FromURI(path + "?format=csv")
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumCol())
	assert.Nil(t, d.Label())
}

// TestParseURI tests URI validation.
func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
		want    URISpec
	}{
		{"default format", "a.csv", false, URISpec{Path: "a.csv", Format: "csv", LabelColumn: -1}},
		{"label column", "a.csv?format=csv&label_column=4", false, URISpec{Path: "a.csv", Format: "csv", LabelColumn: 4}},
		{"libsvm rejected", "a.txt?format=libsvm", true, URISpec{}},
		{"bad label column", "a.csv?label_column=x", true, URISpec{}},
		{"empty path", "?format=csv", true, URISpec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseURIWarnsOnUnknownArgument tests the unused-parameter warning.
func TestParseURIWarnsOnUnknownArgument(t *testing.T) {
	var warnings []error
	scigoErrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer scigoErrors.SetWarningHandler(nil)

	_, err := ParseURI("a.csv?format=csv&silent=1")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	var w *scigoErrors.UnusedParameterWarning
	require.ErrorAs(t, warnings[0], &w)
	assert.Equal(t, "silent", w.Name)
}

// TestNewWarnsOnConversion tests the warning for matrices stored other than
// as *mat.Dense.
func TestNewWarnsOnConversion(t *testing.T) {
	var warnings []error
	scigoErrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer scigoErrors.SetWarningHandler(nil)

	X := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	_, err := New(X)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	d, err := New(X.T())
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumRow())
	assert.Equal(t, 4.0, d.At(0, 1))
	require.Len(t, warnings, 1)
	var w *scigoErrors.DataConversionWarning
	require.ErrorAs(t, warnings[0], &w)
	assert.Equal(t, "mat.Transpose", w.FromType)
	assert.Equal(t, "*mat.Dense", w.ToType)
}
