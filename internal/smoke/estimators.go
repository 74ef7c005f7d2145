// Package smoke contains the smoke harnesses: fixed training runs whose
// printed output (options, fitted state, tree dumps, predictions and
// evaluation lines) is compared across versions.
package smoke

import (
	"context"
	"io"

	"github.com/YuminosukeSato/mllite/booster"
	"github.com/YuminosukeSato/mllite/core/model"
	"github.com/YuminosukeSato/mllite/datasets"
	"github.com/YuminosukeSato/mllite/internal/config"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/YuminosukeSato/mllite/sklearn/xgboost"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// estimator is the part of the xgboost estimators the harnesses print.
type estimator interface {
	model.Fitter
	model.Predictor
	model.ParamsGetter
	GetBooster() (*booster.Booster, error)
	State() model.ModelState
}

// fittedDict is the estimator state printed after Fit: parameters plus the
// fitted attributes with a trailing underscore.
func fittedDict(est estimator, extra map[string]interface{}) map[string]interface{} {
	state := est.State()
	d := make(map[string]interface{}, len(state.Params)+len(extra)+1)
	for k, v := range state.Params {
		d[k] = v
	}
	d["n_features_in_"] = state.NFeatures
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func writeDump(p *printer, est estimator) error {
	bst, err := est.GetBooster()
	if err != nil {
		return err
	}
	dumps, err := bst.DumpModel(true, "json")
	if err != nil {
		return err
	}
	for _, d := range dumps {
		p.println(d)
	}
	return nil
}

// RunClassifier fits a classifier on iris and prints its options, fitted
// state, tree dump, predicted classes and class probabilities.
func RunClassifier(ctx context.Context, w io.Writer, cfg config.ClassifierConfig) error {
	logger := log.GetLoggerWithName("smoke.classifier")
	iris, err := datasets.LoadIris()
	if err != nil {
		return err
	}

	clf := xgboost.NewXGBClassifier()
	if err := clf.SetParams(cfg.Params); err != nil {
		return scigoErrors.Wrap(err, "classifier params")
	}
	p := &printer{w: w}
	writeOptions(p, "XGBOOST_CLASS", clf.GetParams())
	if p.err != nil {
		return p.err
	}

	if err := clf.FitWithOptions(iris.X, iris.Y, xgboost.WithContext(ctx)); err != nil {
		return err
	}
	p.println(formatDict(fittedDict(clf, map[string]interface{}{
		"n_classes_": clf.NClasses(),
		"classes_":   clf.Classes(),
	})))
	if err := writeDump(p, clf); err != nil {
		return err
	}

	pred, err := clf.Predict(iris.X)
	if err != nil {
		return err
	}
	p.println(formatIntArray(mat.Col(nil, 0, pred)))
	proba, err := clf.PredictProba(iris.X)
	if err != nil {
		return err
	}
	p.println(formatMatrix(matrixRows(proba)))

	logger.Info("classifier smoke finished", log.SamplesKey, iris.Rows(), "n_classes", clf.NClasses())
	return p.err
}

// RunRegressor fits a regressor on Friedman #1 data and prints the leading
// rows, the target mean, options, fitted state, tree dump and predictions.
func RunRegressor(ctx context.Context, w io.Writer, cfg config.RegressorConfig) error {
	logger := log.GetLoggerWithName("smoke.regressor")
	data, err := datasets.MakeFriedman1(cfg.Rows, cfg.Noise, cfg.Seed)
	if err != nil {
		return err
	}

	p := &printer{w: w}
	target := data.Target()
	for i := 0; i < data.Rows() && i < cfg.PrintRows; i++ {
		p.printf("DIABETES_DATA %d %s %s\n", i, formatFloats(data.X.RawRowView(i)), formatFloat(target[i]))
	}
	p.printf("y_mean =  %s\n", formatFloat(stat.Mean(target, nil)))

	reg := xgboost.NewXGBRegressor()
	if err := reg.SetParams(cfg.Params); err != nil {
		return scigoErrors.Wrap(err, "regressor params")
	}
	writeOptions(p, "XGBOOST_REG", reg.GetParams())
	if p.err != nil {
		return p.err
	}

	if err := reg.FitWithOptions(data.X, data.Y, xgboost.WithContext(ctx)); err != nil {
		return err
	}
	p.println(formatDict(fittedDict(reg, nil)))
	if err := writeDump(p, reg); err != nil {
		return err
	}

	pred, err := reg.Predict(data.X)
	if err != nil {
		return err
	}
	p.println(formatArray(mat.Col(nil, 0, pred)))

	logger.Info("regressor smoke finished", log.SamplesKey, data.Rows())
	return p.err
}

func matrixRows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}
