package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "mllite: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "mllite: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("CreateDMatrixFromPartitions", 4, 3, 1)
	assert.Equal(t, "mllite: CreateDMatrixFromPartitions: dimension mismatch on axis 1 (features). Expected 4, got 3", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)
}

func TestNewPartitionError(t *testing.T) {
	err := NewPartitionError(2, "validationIndicator", "column missing")
	assert.Equal(t, `mllite: partition 2: column "validationIndicator": column missing`, err.Error())

	noColumn := NewPartitionError(0, "", "no rows")
	assert.Equal(t, "mllite: partition 0: no rows", noColumn.Error())

	var partErr *PartitionError
	require.True(t, As(err, &partErr))
	assert.Equal(t, 2, partErr.Index)
}

func TestWrapKeepsType(t *testing.T) {
	base := NewValidationError("max_depth", "must be non-negative", -1)
	wrapped := Wrap(base, "parse params")

	assert.True(t, strings.HasPrefix(wrapped.Error(), "parse params: "))
	var vErr *ValidationError
	require.True(t, As(wrapped, &vErr))
	assert.Equal(t, "max_depth", vErr.ParamName)
	assert.True(t, Is(wrapped, base))
}

func TestWarnRouting(t *testing.T) {
	t.Cleanup(func() {
		SetZerologWarnFunc(nil)
		SetWarningHandler(func(w error) {})
	})

	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	Warn(NewUnusedParameterWarning("booster", "foo", "1"))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), `parameter "foo"`)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			logger.Warn().Object("warning", m).Msg(w.Error())
			return
		}
		logger.Warn().Msg(w.Error())
	})
	Warn(NewUnusedParameterWarning("booster", "bar", "2"))
	assert.Len(t, got, 1, "zerolog sink takes precedence over the handler")
	assert.Contains(t, buf.String(), `"param":"bar"`)
	assert.Contains(t, buf.String(), `"type":"UnusedParameterWarning"`)
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("grad", []float64{1, 2, 3}, 0))

	err := CheckNumericalStability("grad", []float64{1, nan(), 3}, 7)
	require.Error(t, err)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 7, numErr.Iteration)
	assert.Equal(t, "grad", numErr.Operation)
}

func TestSoftmaxSumsToOne(t *testing.T) {
	p := Softmax(nil, []float64{1000, 1001, 1002})
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, p[2], p[1])
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
}

func nan() float64 {
	var zero float64
	return zero / zero
}
