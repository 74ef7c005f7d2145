package metrics

import (
	"math"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy is the (weighted) share of exact label matches.
func Accuracy(yTrue, yPred mat.Vector, weight []float64) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if weight != nil && len(weight) != n {
		return 0, scigoErrors.NewDimensionError("Accuracy", n, len(weight), 0)
	}
	hits := make([]float64, n)
	for i := range hits {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			hits[i] = 1
		}
	}
	return weightedMean(hits, weight), nil
}

// LogLoss is the mean negative log-likelihood of the true class under the
// n x classes probability matrix proba. Probabilities are clipped to
// [eps, 1-eps].
func LogLoss(yTrue mat.Vector, proba mat.Matrix) (float64, error) {
	n := yTrue.Len()
	r, c := proba.Dims()
	if n == 0 {
		return 0, scigoErrors.NewValueError("LogLoss", "empty vector")
	}
	if r != n {
		return 0, scigoErrors.NewDimensionError("LogLoss", n, r, 0)
	}
	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		k := int(yTrue.AtVec(i))
		if k < 0 || k >= c {
			return 0, scigoErrors.NewValidationError("yTrue", "class out of range", k)
		}
		sum -= math.Log(scigoErrors.ClipValue(proba.At(i, k), eps, 1-eps))
	}
	return sum / float64(n), nil
}
