package booster

import (
	"math"
	"testing"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, "gbtree", p.Booster)
	assert.Equal(t, "reg:squarederror", p.Objective)
	assert.Equal(t, 6, p.MaxDepth)
	assert.Equal(t, 0.3, p.Eta)
	assert.Equal(t, 1.0, p.MinChildWeight)
	assert.Equal(t, 1.0, p.Lambda)
	assert.Equal(t, 256, p.MaxBin)
	assert.True(t, math.IsNaN(p.BaseScore))
	assert.Equal(t, "cpu", p.Device)
}

func TestParamsSetAliases(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(t *testing.T, p Params)
	}{
		{"learning_rate", "0.1", func(t *testing.T, p Params) { assert.Equal(t, 0.1, p.Eta) }},
		{"reg_lambda", "2.5", func(t *testing.T, p Params) { assert.Equal(t, 2.5, p.Lambda) }},
		{"reg_alpha", "0.5", func(t *testing.T, p Params) { assert.Equal(t, 0.5, p.Alpha) }},
		{"min_split_loss", "3", func(t *testing.T, p Params) { assert.Equal(t, 3.0, p.Gamma) }},
		{"random_state", "1789", func(t *testing.T, p Params) { assert.Equal(t, int64(1789), p.Seed) }},
		{"n_jobs", "4", func(t *testing.T, p Params) { assert.Equal(t, 4, p.NThread) }},
		{"max_bin", "10", func(t *testing.T, p Params) { assert.Equal(t, 10, p.MaxBin) }},
		{"num_class", "3", func(t *testing.T, p Params) { assert.Equal(t, 3, p.NumClass) }},
		{"objective", "multi:softmax", func(t *testing.T, p Params) { assert.Equal(t, "multi:softmax", p.Objective) }},
		{"base_score", "0.25", func(t *testing.T, p Params) { assert.Equal(t, 0.25, p.BaseScore) }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p := DefaultParams()
			require.NoError(t, p.Set(tt.key, tt.value))
			tt.check(t, p)
		})
	}
}

func TestParamsSetInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"booster", "gblinear"},
		{"device", "cuda"},
		{"objective", "rank:pairwise"},
		{"max_depth", "-1"},
		{"max_depth", "deep"},
		{"eta", "-0.1"},
		{"max_bin", "1"},
		{"subsample", "0"},
		{"subsample", "1.5"},
		{"eval_metric", "rmse,auc"},
		{"lambda", "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			p := DefaultParams()
			err := p.Set(tt.key, tt.value)
			require.Error(t, err)
			var verr *scigoErrors.ValidationError
			assert.True(t, scigoErrors.As(err, &verr))
		})
	}
}

func TestParamsUnknownKeyWarns(t *testing.T) {
	var warnings []error
	scigoErrors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer scigoErrors.SetWarningHandler(func(error) {})

	p := DefaultParams()
	require.NoError(t, p.Set("tree_method", "hist"))
	require.Len(t, warnings, 1)
	var uw *scigoErrors.UnusedParameterWarning
	assert.True(t, scigoErrors.As(warnings[0], &uw))
	assert.Equal(t, DefaultParams().Map(), p.Map())
}

func TestParamsEvalMetricDeduplicates(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Set("eval_metric", "rmse, mae"))
	require.NoError(t, p.Set("eval_metric", "mae"))
	assert.Equal(t, []string{"rmse", "mae"}, p.EvalMetrics)
}

func TestParamsMapRoundTrip(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Set("objective", "multi:softprob"))
	require.NoError(t, p.Set("num_class", "3"))
	require.NoError(t, p.Set("eta", "0.05"))
	require.NoError(t, p.Set("eval_metric", "mlogloss,merror"))
	require.NoError(t, p.Set("base_score", "0.5"))

	m := p.Map()
	assert.Equal(t, "0.05", m["eta"])
	assert.Equal(t, "mlogloss,merror", m["eval_metric"])

	q, err := ParamsFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, p, q)
}

func TestParamsMapOmitsUnsetBaseScore(t *testing.T) {
	_, ok := DefaultParams().Map()["base_score"]
	assert.False(t, ok)
}
