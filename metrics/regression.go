// Package metrics scores predictions of the estimators.
package metrics

import (
	"math"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func checkPair(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, scigoErrors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, scigoErrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE is the mean squared error.
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += d * d
	}
	return sum / float64(n), nil
}

// RMSE is the square root of MSE.
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score is the coefficient of determination, optionally weighted.
// A constant yTrue is an error.
func R2Score(yTrue, yPred mat.Vector, weight []float64) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if weight != nil && len(weight) != n {
		return 0, scigoErrors.NewDimensionError("R2Score", n, len(weight), 0)
	}
	y := mat.Col(nil, 0, yTrue)
	mean := stat.Mean(y, weight)

	var tss, rss float64
	for i := 0; i < n; i++ {
		w := 1.0
		if weight != nil {
			w = weight[i]
		}
		d := y[i] - yPred.AtVec(i)
		rss += w * d * d
		tss += w * (y[i] - mean) * (y[i] - mean)
	}
	if tss == 0 {
		return 0, scigoErrors.NewValueError("R2Score", "yTrue has no variance")
	}
	return 1 - rss/tss, nil
}

// MSEMatrix computes MSE of two n x 1 matrices.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := column("MSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := column("MSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

func column(op string, m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 {
		return nil, scigoErrors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, scigoErrors.NewDimensionError(op, 1, c, 1)
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// weightedMean averages xs with optional weights.
func weightedMean(xs, weight []float64) float64 {
	if weight == nil {
		return floats.Sum(xs) / float64(len(xs))
	}
	return floats.Dot(xs, weight) / floats.Sum(weight)
}
