package xgboost

import (
	"github.com/YuminosukeSato/mllite/core/model"
	"github.com/YuminosukeSato/mllite/metrics"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Fitter       = (*XGBRegressor)(nil)
	_ model.Predictor    = (*XGBRegressor)(nil)
	_ model.ParamsGetter = (*XGBRegressor)(nil)
)

// XGBRegressor is a gradient boosted tree regressor.
type XGBRegressor struct {
	XGBModel
}

// NewXGBRegressor creates a regressor with default hyperparameters.
func NewXGBRegressor() *XGBRegressor {
	return &XGBRegressor{XGBModel: newXGBModel("reg:squarederror", "xgboost.regressor")}
}

// Fit trains the regressor on X and the target column y.
func (r *XGBRegressor) Fit(X, y mat.Matrix) error {
	return r.FitWithOptions(X, y)
}

// FitWithOptions trains with eval sets, weights or base margins.
func (r *XGBRegressor) FitWithOptions(X, y mat.Matrix, opts ...FitOption) (err error) {
	defer scigoErrors.Recover(&err, "XGBRegressor.Fit")

	cfg := &fitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	target, err := labelColumn("XGBRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	return r.fit("XGBRegressor.Fit", X, target, cfg, nil)
}

// Predict returns the prediction of every row as an n x 1 matrix.
func (r *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return r.predict("XGBRegressor", X, false)
}

// PredictMargin returns the untransformed margins.
func (r *XGBRegressor) PredictMargin(X mat.Matrix) (mat.Matrix, error) {
	return r.predict("XGBRegressor", X, true)
}

// Score returns the coefficient of determination R^2 on X and y.
func (r *XGBRegressor) Score(X, y mat.Matrix) (float64, error) {
	target, err := labelColumn("XGBRegressor.Score", X, y)
	if err != nil {
		return 0, err
	}
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := pred.Dims()
	return metrics.R2Score(mat.NewVecDense(len(target), target), mat.NewVecDense(rows, mat.Col(nil, 0, pred)), nil)
}
