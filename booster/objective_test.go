package booster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObjective(t *testing.T, kv ...string) Objective {
	t.Helper()
	p := DefaultParams()
	for i := 0; i+1 < len(kv); i += 2 {
		require.NoError(t, p.Set(kv[i], kv[i+1]))
	}
	obj, err := NewObjective(p)
	require.NoError(t, err)
	return obj
}

func TestSquaredErrorGradient(t *testing.T) {
	obj := newTestObjective(t)
	testCases := []struct {
		margin, label, weight float64
		expGrad, expHess      float64
	}{
		{margin: 2.0, label: 1.0, weight: 1, expGrad: 1.0, expHess: 1.0},
		{margin: 1.0, label: 2.0, weight: 1, expGrad: -1.0, expHess: 1.0},
		{margin: 3.5, label: 3.5, weight: 2, expGrad: 0.0, expHess: 2.0},
		{margin: -1.0, label: 1.0, weight: 0.5, expGrad: -1.0, expHess: 0.5},
	}
	for _, tc := range testCases {
		grad, hess := make([]float64, 1), make([]float64, 1)
		obj.Gradient([]float64{tc.margin}, tc.label, tc.weight, grad, hess)
		assert.InDelta(t, tc.expGrad, grad[0], 1e-12, "margin=%.2f label=%.2f", tc.margin, tc.label)
		assert.InDelta(t, tc.expHess, hess[0], 1e-12)
	}
	assert.InDelta(t, 3.0, obj.EstimateBaseScore([]float64{1, 2, 3, 4, 5}, nil), 1e-12)
	assert.InDelta(t, 4.0, obj.EstimateBaseScore([]float64{1, 5}, []float64{1, 3}), 1e-12)
	assert.Equal(t, "rmse", obj.DefaultMetric())
}

func TestLogisticObjective(t *testing.T) {
	obj := newTestObjective(t, "objective", "binary:logistic")

	grad, hess := make([]float64, 1), make([]float64, 1)
	obj.Gradient([]float64{0}, 1, 1, grad, hess)
	assert.InDelta(t, -0.5, grad[0], 1e-12)
	assert.InDelta(t, 0.25, hess[0], 1e-12)

	out := make([]float64, 1)
	obj.PredTransform([]float64{0}, out)
	assert.InDelta(t, 0.5, out[0], 1e-12)

	assert.InDelta(t, 0.0, obj.ProbToMargin(0.5), 1e-12)
	assert.InDelta(t, math.Log(3), obj.ProbToMargin(0.75), 1e-12)
	assert.Equal(t, "logloss", obj.DefaultMetric())

	assert.NoError(t, obj.CheckLabel(0))
	assert.NoError(t, obj.CheckLabel(1))
	assert.Error(t, obj.CheckLabel(2))
	assert.Error(t, obj.CheckLabel(-0.1))

	reg := newTestObjective(t, "objective", "reg:logistic")
	assert.Equal(t, "rmse", reg.DefaultMetric())
}

func TestPoissonObjective(t *testing.T) {
	obj := newTestObjective(t, "objective", "count:poisson")

	grad, hess := make([]float64, 1), make([]float64, 1)
	obj.Gradient([]float64{0}, 2, 1, grad, hess)
	assert.InDelta(t, -1.0, grad[0], 1e-12)
	assert.InDelta(t, math.Exp(0.7), hess[0], 1e-12)
	assert.InDelta(t, math.Log(2), obj.ProbToMargin(2), 1e-12)
	assert.Error(t, obj.CheckLabel(-1))
}

func TestSoftmaxObjective(t *testing.T) {
	obj := newTestObjective(t, "objective", "multi:softprob", "num_class", "3")
	require.Equal(t, 3, obj.Groups())
	require.Equal(t, 3, obj.OutputColumns())

	grad, hess := make([]float64, 3), make([]float64, 3)
	obj.Gradient([]float64{0, 0, 0}, 1, 1, grad, hess)
	assert.InDelta(t, 1.0/3, grad[0], 1e-12)
	assert.InDelta(t, -2.0/3, grad[1], 1e-12)
	assert.InDelta(t, 1.0/3, grad[2], 1e-12)
	for _, h := range hess {
		assert.InDelta(t, 4.0/9, h, 1e-12)
	}
	assert.InDelta(t, 0.0, grad[0]+grad[1]+grad[2], 1e-12)

	probs := make([]float64, 3)
	obj.PredTransform([]float64{1, 2, 3}, probs)
	assert.InDelta(t, 1.0, probs[0]+probs[1]+probs[2], 1e-12)
	assert.Greater(t, probs[2], probs[1])

	assert.Error(t, obj.CheckLabel(3))
	assert.Error(t, obj.CheckLabel(0.5))

	classes := newTestObjective(t, "objective", "multi:softmax", "num_class", "3")
	assert.Equal(t, 1, classes.OutputColumns())
	out := make([]float64, 1)
	classes.PredTransform([]float64{0.1, 2, -1}, out)
	assert.Equal(t, 1.0, out[0])
}

func TestNewObjectiveRequiresNumClass(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Set("objective", "multi:softmax"))
	_, err := NewObjective(p)
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name   string
		preds  []float64
		groups int
		label  []float64
		weight []float64
		want   float64
	}{
		{"rmse", []float64{1, 2}, 1, []float64{0, 0}, nil, math.Sqrt(2.5)},
		{"rmse", []float64{1, 2}, 1, []float64{0, 0}, []float64{1, 3}, math.Sqrt(3.25)},
		{"mae", []float64{1, -2}, 1, []float64{0, 0}, nil, 1.5},
		{"error", []float64{0.7, 0.2}, 1, []float64{1, 1}, nil, 0.5},
		{"logloss", []float64{0.5, 0.5}, 1, []float64{1, 0}, nil, math.Log(2)},
		{"merror", []float64{0.1, 0.9, 0.8, 0.2}, 2, []float64{1, 1}, nil, 0.5},
		{"mlogloss", []float64{0.1, 0.9, 0.8, 0.2}, 2, []float64{1, 1}, nil, -(math.Log(0.9) + math.Log(0.2)) / 2},
		{"poisson-nloglik", []float64{1}, 1, []float64{0}, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMetric(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, m.Name())
			assert.InDelta(t, tt.want, m.Eval(tt.preds, tt.groups, tt.label, tt.weight), 1e-12)
		})
	}

	_, err := NewMetric("auc")
	assert.Error(t, err)
}
