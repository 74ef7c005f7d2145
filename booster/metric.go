package booster

import (
	"math"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Metric scores transformed predictions against labels.
//
// preds is row-major with groups values per row, already passed through
// Objective.EvalTransform.
type Metric interface {
	Name() string
	Eval(preds []float64, groups int, label, weight []float64) float64
}

var metrics = map[string]Metric{
	"rmse":            elementwise{"rmse", func(p, y float64) float64 { return (p - y) * (p - y) }, math.Sqrt},
	"mae":             elementwise{"mae", func(p, y float64) float64 { return math.Abs(p - y) }, nil},
	"logloss":         elementwise{"logloss", logLoss, nil},
	"error":           elementwise{"error", binaryError, nil},
	"poisson-nloglik": elementwise{"poisson-nloglik", poissonNLogLik, nil},
	"mlogloss":        multiclass{"mlogloss", multiLogLoss},
	"merror":          multiclass{"merror", multiError},
}

// NewMetric returns the metric registered under name.
func NewMetric(name string) (Metric, error) {
	m, ok := metrics[name]
	if !ok {
		return nil, scigoErrors.NewValidationError("eval_metric", "unknown metric", name)
	}
	return m, nil
}

// elementwise averages a per-row loss over the first group, weighted.
type elementwise struct {
	name     string
	loss     func(p, y float64) float64
	finalize func(float64) float64
}

func (e elementwise) Name() string { return e.name }

func (e elementwise) Eval(preds []float64, groups int, label, weight []float64) float64 {
	sum, sw := 0.0, 0.0
	for i, y := range label {
		w := 1.0
		if weight != nil {
			w = weight[i]
		}
		sum += w * e.loss(preds[i*groups], y)
		sw += w
	}
	v := scigoErrors.SafeDivide(sum, sw)
	if e.finalize != nil {
		v = e.finalize(v)
	}
	return v
}

func logLoss(p, y float64) float64 {
	p = scigoErrors.ClipValue(p, 1e-16, 1-1e-16)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func binaryError(p, y float64) float64 {
	if (p > 0.5) != (y > 0.5) {
		return 1
	}
	return 0
}

func poissonNLogLik(p, y float64) float64 {
	p = math.Max(p, 1e-16)
	lg, _ := math.Lgamma(y + 1)
	return lg + p - math.Log(p)*y
}

// multiclass scores a row from its class probabilities.
type multiclass struct {
	name string
	loss func(probs []float64, y int) float64
}

func (m multiclass) Name() string { return m.name }

func (m multiclass) Eval(preds []float64, groups int, label, weight []float64) float64 {
	sum, sw := 0.0, 0.0
	for i, y := range label {
		w := 1.0
		if weight != nil {
			w = weight[i]
		}
		sum += w * m.loss(preds[i*groups:(i+1)*groups], int(y))
		sw += w
	}
	return scigoErrors.SafeDivide(sum, sw)
}

func multiLogLoss(probs []float64, y int) float64 {
	if y < 0 || y >= len(probs) {
		return -math.Log(1e-16)
	}
	return -math.Log(math.Max(probs[y], 1e-16))
}

func multiError(probs []float64, y int) float64 {
	if floats.MaxIdx(probs) != y {
		return 1
	}
	return 0
}
