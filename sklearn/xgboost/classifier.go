package xgboost

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/mllite/core/model"
	"github.com/YuminosukeSato/mllite/metrics"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Fitter         = (*XGBClassifier)(nil)
	_ model.ProbaPredictor = (*XGBClassifier)(nil)
	_ model.ParamsGetter   = (*XGBClassifier)(nil)
)

// XGBClassifier is a gradient boosted tree classifier. Labels must be the
// integers 0..K-1.
type XGBClassifier struct {
	XGBModel

	nClasses  int
	objective string // objective the booster was trained with
}

// NewXGBClassifier creates a classifier with default hyperparameters. The
// binary:logistic default becomes multi:softprob for more than two classes.
func NewXGBClassifier() *XGBClassifier {
	return &XGBClassifier{XGBModel: newXGBModel("binary:logistic", "xgboost.classifier")}
}

// Fit trains the classifier on X and the label column y.
func (c *XGBClassifier) Fit(X, y mat.Matrix) error {
	return c.FitWithOptions(X, y)
}

// FitWithOptions trains with eval sets, weights or base margins.
func (c *XGBClassifier) FitWithOptions(X, y mat.Matrix, opts ...FitOption) (err error) {
	defer scigoErrors.Recover(&err, "XGBClassifier.Fit")

	cfg := &fitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	labels, err := labelColumn("XGBClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	nClasses, err := countClasses(labels)
	if err != nil {
		return err
	}
	if c.NumClass > 0 {
		if nClasses > c.NumClass {
			return scigoErrors.NewValidationError("num_class", "smaller than the number of classes in y", c.NumClass)
		}
		nClasses = c.NumClass
	}

	objective := c.Objective
	overrides := map[string]string{}
	if nClasses > 2 {
		if !strings.HasPrefix(objective, "multi:") {
			objective = "multi:softprob"
		}
		overrides["num_class"] = strconv.Itoa(nClasses)
	} else if strings.HasPrefix(objective, "multi:") {
		overrides["num_class"] = strconv.Itoa(nClasses)
	}
	overrides["objective"] = objective

	if err := c.fit("XGBClassifier.Fit", X, labels, cfg, overrides); err != nil {
		return err
	}
	c.nClasses = nClasses
	c.objective = objective
	c.logger.Debug("classifier fitted",
		"n_classes", nClasses,
		"objective", objective,
		log.TreesKey, c.booster.NumBoostedRounds(),
	)
	return nil
}

// countClasses checks that labels are non-negative integers and returns
// max+1, at least 2.
func countClasses(labels []float64) (int, error) {
	if len(labels) == 0 {
		return 0, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "XGBClassifier.Fit")
	}
	for _, v := range labels {
		if v < 0 || v != math.Trunc(v) {
			return 0, scigoErrors.NewValidationError("y", "labels must be integers in [0, n_classes)", v)
		}
	}
	return max(2, int(floats.Max(labels))+1), nil
}

// NClasses returns the number of classes seen in Fit.
func (c *XGBClassifier) NClasses() int { return c.nClasses }

// Classes returns the class labels 0..K-1.
func (c *XGBClassifier) Classes() []float64 {
	out := make([]float64, c.nClasses)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// Predict returns the predicted class of every row as an n x 1 matrix.
func (c *XGBClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if c.objective == "multi:softmax" {
		return c.predict("XGBClassifier", X, false)
	}
	proba, err := c.predictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(floats.MaxIdx(proba.RawRowView(i))))
	}
	return out, nil
}

// PredictProba returns class probabilities, n x n_classes. For
// multi:softmax they are the softmax of the raw margins.
func (c *XGBClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return c.predictProba(X)
}

func (c *XGBClassifier) predictProba(X mat.Matrix) (*mat.Dense, error) {
	switch {
	case c.objective == "multi:softmax":
		margin, err := c.predict("XGBClassifier", X, true)
		if err != nil {
			return nil, err
		}
		rows, cols := margin.Dims()
		out := mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			scigoErrors.Softmax(out.RawRowView(i), margin.RawRowView(i))
		}
		return out, nil
	case strings.HasPrefix(c.objective, "multi:"):
		return c.predict("XGBClassifier", X, false)
	default:
		p, err := c.predict("XGBClassifier", X, false)
		if err != nil {
			return nil, err
		}
		rows, _ := p.Dims()
		out := mat.NewDense(rows, 2, nil)
		for i := 0; i < rows; i++ {
			out.Set(i, 0, 1-p.At(i, 0))
			out.Set(i, 1, p.At(i, 0))
		}
		return out, nil
	}
}

// PredictMargin returns the raw margins, n x groups.
func (c *XGBClassifier) PredictMargin(X mat.Matrix) (mat.Matrix, error) {
	return c.predict("XGBClassifier", X, true)
}

// Score returns the mean accuracy on X and y.
func (c *XGBClassifier) Score(X, y mat.Matrix) (float64, error) {
	labels, err := labelColumn("XGBClassifier.Score", X, y)
	if err != nil {
		return 0, err
	}
	pred, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := pred.Dims()
	return metrics.Accuracy(mat.NewVecDense(len(labels), labels), mat.NewVecDense(rows, mat.Col(nil, 0, pred)), nil)
}

// LoadModel reads a booster written by SaveModel and restores the class
// count from its parameters.
func (c *XGBClassifier) LoadModel(path string) error {
	if err := c.XGBModel.LoadModel(path); err != nil {
		return err
	}
	p := c.booster.Params()
	c.objective = p.Objective
	c.nClasses = 2
	if p.NumClass > 2 {
		c.nClasses = p.NumClass
	}
	return nil
}
