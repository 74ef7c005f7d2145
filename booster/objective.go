package booster

import (
	"math"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Objective computes first and second order gradients of a loss with
// respect to the raw margin.
type Objective interface {
	// Name returns the objective identifier, e.g. "reg:squarederror".
	Name() string

	// Groups returns the number of margin values per row.
	Groups() int

	// Gradient fills grad and hess (len Groups()) for one row.
	Gradient(margin []float64, label, weight float64, grad, hess []float64)

	// EvalTransform maps a row's margins to the values metrics consume:
	// probabilities for classification, means for regression.
	EvalTransform(margin, out []float64)

	// PredTransform maps margins to the prediction output; it returns the
	// number of output columns per row.
	PredTransform(margin, out []float64) int

	// OutputColumns returns the number of prediction columns per row.
	OutputColumns() int

	// ProbToMargin converts a base score to margin space.
	ProbToMargin(base float64) float64

	// EstimateBaseScore returns the base score used when none is configured.
	EstimateBaseScore(label, weight []float64) float64

	// CheckLabel validates one label.
	CheckLabel(label float64) error

	// DefaultMetric names the metric used when eval_metric is unset.
	DefaultMetric() string
}

var objectives = map[string]func(p Params) Objective{
	"reg:squarederror": func(Params) Objective { return squaredError{} },
	"reg:logistic":     func(Params) Objective { return logistic{name: "reg:logistic", metric: "rmse"} },
	"binary:logistic":  func(Params) Objective { return logistic{name: "binary:logistic", metric: "logloss"} },
	"count:poisson":    func(p Params) Objective { return poisson{maxDeltaStep: p.MaxDeltaStep} },
	"multi:softmax":    func(p Params) Objective { return softmax{numClass: p.NumClass, prob: false} },
	"multi:softprob":   func(p Params) Objective { return softmax{numClass: p.NumClass, prob: true} },
}

// NewObjective builds the objective named by p.Objective.
func NewObjective(p Params) (Objective, error) {
	factory, ok := objectives[p.Objective]
	if !ok {
		return nil, scigoErrors.NewValidationError("objective", "unknown objective", p.Objective)
	}
	if (p.Objective == "multi:softmax" || p.Objective == "multi:softprob") && p.NumClass < 2 {
		return nil, scigoErrors.NewValidationError("num_class", "must be set to at least 2 for "+p.Objective, p.NumClass)
	}
	return factory(p), nil
}

const hessEps = 1e-16

func weightedMean(label, weight []float64) float64 {
	if len(label) == 0 {
		return 0
	}
	if weight == nil {
		return floats.Sum(label) / float64(len(label))
	}
	sw := floats.Sum(weight)
	if sw == 0 {
		return 0
	}
	return floats.Dot(label, weight) / sw
}

// squaredError is reg:squarederror.
type squaredError struct{}

func (squaredError) Name() string      { return "reg:squarederror" }
func (squaredError) Groups() int       { return 1 }
func (squaredError) OutputColumns() int { return 1 }

func (squaredError) Gradient(margin []float64, label, weight float64, grad, hess []float64) {
	grad[0] = (margin[0] - label) * weight
	hess[0] = weight
}

func (squaredError) EvalTransform(margin, out []float64) { out[0] = margin[0] }

func (squaredError) PredTransform(margin, out []float64) int {
	out[0] = margin[0]
	return 1
}

func (squaredError) ProbToMargin(base float64) float64 { return base }

func (squaredError) EstimateBaseScore(label, weight []float64) float64 {
	return weightedMean(label, weight)
}

func (squaredError) CheckLabel(float64) error { return nil }
func (squaredError) DefaultMetric() string    { return "rmse" }

// logistic is reg:logistic and binary:logistic.
type logistic struct {
	name   string
	metric string
}

func (l logistic) Name() string       { return l.name }
func (logistic) Groups() int          { return 1 }
func (logistic) OutputColumns() int   { return 1 }
func (l logistic) DefaultMetric() string { return l.metric }

func (logistic) Gradient(margin []float64, label, weight float64, grad, hess []float64) {
	p := scigoErrors.Sigmoid(margin[0])
	grad[0] = (p - label) * weight
	hess[0] = math.Max(p*(1-p), hessEps) * weight
}

func (logistic) EvalTransform(margin, out []float64) { out[0] = scigoErrors.Sigmoid(margin[0]) }

func (logistic) PredTransform(margin, out []float64) int {
	out[0] = scigoErrors.Sigmoid(margin[0])
	return 1
}

func (logistic) ProbToMargin(base float64) float64 {
	base = scigoErrors.ClipValue(base, hessEps, 1-hessEps)
	return math.Log(base / (1 - base))
}

func (logistic) EstimateBaseScore(label, weight []float64) float64 {
	return weightedMean(label, weight)
}

func (logistic) CheckLabel(y float64) error {
	if y < 0 || y > 1 || math.IsNaN(y) {
		return scigoErrors.NewValidationError("label", "must be in [0, 1] for logistic objectives", y)
	}
	return nil
}

// poisson is count:poisson with a log link.
type poisson struct {
	maxDeltaStep float64
}

func (poisson) Name() string         { return "count:poisson" }
func (poisson) Groups() int          { return 1 }
func (poisson) OutputColumns() int   { return 1 }
func (poisson) DefaultMetric() string { return "poisson-nloglik" }

func (o poisson) Gradient(margin []float64, label, weight float64, grad, hess []float64) {
	grad[0] = (scigoErrors.StabilizeExp(margin[0]) - label) * weight
	hess[0] = scigoErrors.StabilizeExp(margin[0]+o.maxDeltaStep) * weight
}

func (poisson) EvalTransform(margin, out []float64) { out[0] = scigoErrors.StabilizeExp(margin[0]) }

func (poisson) PredTransform(margin, out []float64) int {
	out[0] = scigoErrors.StabilizeExp(margin[0])
	return 1
}

func (poisson) ProbToMargin(base float64) float64 {
	return scigoErrors.StabilizeLog(base)
}

func (poisson) EstimateBaseScore(label, weight []float64) float64 {
	return weightedMean(label, weight)
}

func (poisson) CheckLabel(y float64) error {
	if y < 0 || math.IsNaN(y) {
		return scigoErrors.NewValidationError("label", "must be non-negative for count:poisson", y)
	}
	return nil
}

// softmax is multi:softmax (class output) and multi:softprob (probability output).
type softmax struct {
	numClass int
	prob     bool
}

func (s softmax) Name() string {
	if s.prob {
		return "multi:softprob"
	}
	return "multi:softmax"
}

func (s softmax) Groups() int         { return s.numClass }
func (softmax) DefaultMetric() string { return "mlogloss" }

func (s softmax) OutputColumns() int {
	if s.prob {
		return s.numClass
	}
	return 1
}

func (s softmax) Gradient(margin []float64, label, weight float64, grad, hess []float64) {
	scigoErrors.Softmax(grad, margin)
	y := int(label)
	for k, p := range grad {
		h := math.Max(2*p*(1-p), hessEps) * weight
		if k == y {
			p--
		}
		grad[k] = p * weight
		hess[k] = h
	}
}

func (softmax) EvalTransform(margin, out []float64) { scigoErrors.Softmax(out, margin) }

func (s softmax) PredTransform(margin, out []float64) int {
	if s.prob {
		scigoErrors.Softmax(out, margin)
		return s.numClass
	}
	out[0] = float64(floats.MaxIdx(margin))
	return 1
}

// ProbToMargin is the identity: every class starts from the same margin.
func (softmax) ProbToMargin(base float64) float64 { return base }

func (softmax) EstimateBaseScore([]float64, []float64) float64 { return 0.5 }

func (s softmax) CheckLabel(y float64) error {
	if y < 0 || y >= float64(s.numClass) || y != math.Trunc(y) {
		return scigoErrors.NewValidationError("label", "must be an integer in [0, num_class)", y)
	}
	return nil
}
