// Package xgboost provides scikit-learn style estimators on top of the
// booster package.
//
//	clf := xgboost.NewXGBClassifier()
//	clf.MaxDepth = 3
//	if err := clf.Fit(X, y); err != nil { ... }
//	proba, err := clf.PredictProba(X)
package xgboost

import (
	"context"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/mllite/booster"
	"github.com/YuminosukeSato/mllite/core/model"
	"github.com/YuminosukeSato/mllite/dmatrix"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// XGBModel holds the hyperparameters and fitted booster shared by
// XGBClassifier and XGBRegressor.
type XGBModel struct {
	state *model.StateManager

	// Hyperparameters (python names in GetParams)
	NEstimators         int     // n_estimators: boosting rounds
	MaxDepth            int     // max_depth, 0 = unlimited
	MaxBin              int     // max_bin
	LearningRate        float64 // learning_rate
	MinChildWeight      float64 // min_child_weight
	Gamma               float64 // gamma
	RegAlpha            float64 // reg_alpha
	RegLambda           float64 // reg_lambda
	Subsample           float64 // subsample
	ColsampleBytree     float64 // colsample_bytree
	Objective           string  // objective
	NumClass            int     // num_class, 0 = inferred
	NJobs               int     // n_jobs, 0 = all cores
	RandomState         int64   // random_state
	BaseScore           float64 // base_score, NaN = estimated
	EvalMetric          string  // eval_metric, "" = objective default
	EarlyStoppingRounds int     // early_stopping_rounds, 0 = disabled
	Booster             string  // booster

	// extra holds booster parameters without a dedicated field.
	extra map[string]string

	id          string
	booster     *booster.Booster
	evalsResult booster.EvalsResult
	logger      log.Logger
}

func newXGBModel(objective, component string) XGBModel {
	id := uuid.NewString()
	return XGBModel{
		state:           model.NewStateManager(),
		NEstimators:     100,
		MaxDepth:        6,
		MaxBin:          256,
		LearningRate:    0.3,
		MinChildWeight:  1,
		RegLambda:       1,
		Subsample:       1,
		ColsampleBytree: 1,
		Objective:       objective,
		BaseScore:       math.NaN(),
		Booster:         "gbtree",
		extra:           map[string]string{},
		id:              id,
		logger:          log.GetLoggerWithName(component).With(log.EstimatorIDKey, id),
	}
}

// GetParams returns the hyperparameters under their python names. Unset
// optional values are nil.
func (m *XGBModel) GetParams() map[string]interface{} {
	p := map[string]interface{}{
		"n_estimators":          m.NEstimators,
		"max_depth":             m.MaxDepth,
		"max_bin":               m.MaxBin,
		"learning_rate":         m.LearningRate,
		"min_child_weight":      m.MinChildWeight,
		"gamma":                 m.Gamma,
		"reg_alpha":             m.RegAlpha,
		"reg_lambda":            m.RegLambda,
		"subsample":             m.Subsample,
		"colsample_bytree":      m.ColsampleBytree,
		"objective":             m.Objective,
		"n_jobs":                m.NJobs,
		"random_state":          m.RandomState,
		"booster":               m.Booster,
		"num_class":             nil,
		"base_score":            nil,
		"eval_metric":           nil,
		"early_stopping_rounds": nil,
	}
	if m.NumClass > 0 {
		p["num_class"] = m.NumClass
	}
	if !math.IsNaN(m.BaseScore) {
		p["base_score"] = m.BaseScore
	}
	if m.EvalMetric != "" {
		p["eval_metric"] = m.EvalMetric
	}
	if m.EarlyStoppingRounds > 0 {
		p["early_stopping_rounds"] = m.EarlyStoppingRounds
	}
	for k, v := range m.extra {
		p[k] = v
	}
	return p
}

// SetParams updates hyperparameters by python name. Keys without a field
// are forwarded to the booster as strings. A nil value resets optional
// parameters.
func (m *XGBModel) SetParams(params map[string]interface{}) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := m.setParam(k, params[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *XGBModel) setParam(key string, v interface{}) error {
	var err error
	switch key {
	case "n_estimators":
		m.NEstimators, err = toInt(key, v)
	case "max_depth":
		m.MaxDepth, err = toInt(key, v)
	case "max_bin":
		m.MaxBin, err = toInt(key, v)
	case "learning_rate", "eta":
		m.LearningRate, err = toFloat(key, v)
	case "min_child_weight":
		m.MinChildWeight, err = toFloat(key, v)
	case "gamma":
		m.Gamma, err = toFloat(key, v)
	case "reg_alpha":
		m.RegAlpha, err = toFloat(key, v)
	case "reg_lambda":
		m.RegLambda, err = toFloat(key, v)
	case "subsample":
		m.Subsample, err = toFloat(key, v)
	case "colsample_bytree":
		m.ColsampleBytree, err = toFloat(key, v)
	case "objective":
		m.Objective, err = toString(key, v)
	case "booster":
		m.Booster, err = toString(key, v)
	case "n_jobs", "nthread":
		m.NJobs, err = toInt(key, v)
	case "random_state", "seed":
		var s int
		s, err = toInt(key, v)
		m.RandomState = int64(s)
	case "num_class":
		if v == nil {
			m.NumClass = 0
			return nil
		}
		m.NumClass, err = toInt(key, v)
	case "base_score":
		if v == nil {
			m.BaseScore = math.NaN()
			return nil
		}
		m.BaseScore, err = toFloat(key, v)
	case "eval_metric":
		if v == nil {
			m.EvalMetric = ""
			return nil
		}
		m.EvalMetric, err = toString(key, v)
	case "early_stopping_rounds":
		if v == nil {
			m.EarlyStoppingRounds = 0
			return nil
		}
		m.EarlyStoppingRounds, err = toInt(key, v)
	default:
		if v == nil {
			delete(m.extra, key)
			return nil
		}
		var s string
		if s, err = toString(key, v); err == nil {
			m.extra[key] = s
		}
	}
	return err
}

func toInt(key string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n, nil
		}
	}
	return 0, scigoErrors.NewValidationError(key, "must be an integer", v)
}

func toFloat(key string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, nil
		}
	}
	return 0, scigoErrors.NewValidationError(key, "must be a number", v)
}

func toString(key string, v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", scigoErrors.NewValidationError(key, "unsupported value type", v)
}

// boosterParams translates the hyperparameters to booster key/values.
func (m *XGBModel) boosterParams() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	p := map[string]string{
		"booster":          m.Booster,
		"objective":        m.Objective,
		"max_depth":        strconv.Itoa(m.MaxDepth),
		"max_bin":          strconv.Itoa(m.MaxBin),
		"eta":              f(m.LearningRate),
		"min_child_weight": f(m.MinChildWeight),
		"gamma":            f(m.Gamma),
		"alpha":            f(m.RegAlpha),
		"lambda":           f(m.RegLambda),
		"subsample":        f(m.Subsample),
		"colsample_bytree": f(m.ColsampleBytree),
		"nthread":          strconv.Itoa(m.NJobs),
		"seed":             strconv.FormatInt(m.RandomState, 10),
	}
	if m.NumClass > 0 {
		p["num_class"] = strconv.Itoa(m.NumClass)
	}
	if !math.IsNaN(m.BaseScore) {
		p["base_score"] = f(m.BaseScore)
	}
	if m.EvalMetric != "" {
		p["eval_metric"] = m.EvalMetric
	}
	for k, v := range m.extra {
		p[k] = v
	}
	return p
}

// EvalSet is one (X, y) pair evaluated after every round.
type EvalSet struct {
	X, Y   mat.Matrix
	Weight []float64
}

type fitConfig struct {
	ctx          context.Context
	evalSets     []EvalSet
	sampleWeight []float64
	baseMargin   []float64
	featureNames []string
	verbose      io.Writer
}

// FitOption configures FitWithOptions.
type FitOption func(*fitConfig)

// WithEvalSet adds evaluation sets, reported as validation_0, validation_1, ...
func WithEvalSet(sets ...EvalSet) FitOption {
	return func(c *fitConfig) { c.evalSets = append(c.evalSets, sets...) }
}

// WithSampleWeight sets per-row training weights.
func WithSampleWeight(w []float64) FitOption {
	return func(c *fitConfig) { c.sampleWeight = w }
}

// WithBaseMargin sets the initial training margin (rows or rows x classes).
func WithBaseMargin(margin []float64) FitOption {
	return func(c *fitConfig) { c.baseMargin = margin }
}

// WithFeatureNames names the columns of X.
func WithFeatureNames(names []string) FitOption {
	return func(c *fitConfig) { c.featureNames = names }
}

// WithVerbose prints the evaluation line of every round to w.
func WithVerbose(w io.Writer) FitOption {
	return func(c *fitConfig) { c.verbose = w }
}

// WithContext makes training cancellable.
func WithContext(ctx context.Context) FitOption {
	return func(c *fitConfig) { c.ctx = ctx }
}

func labelColumn(op string, X, y mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return nil, scigoErrors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, scigoErrors.NewDimensionError(op, 1, yCols, 1)
	}
	return mat.Col(nil, 0, y), nil
}

// fit trains the booster. labels are the already encoded targets of X;
// overrides replace booster parameters derived from the data.
func (m *XGBModel) fit(op string, X mat.Matrix, labels []float64, cfg *fitConfig, overrides map[string]string) error {
	if m.EarlyStoppingRounds > 0 && len(cfg.evalSets) == 0 {
		return scigoErrors.NewValueError(op, "early_stopping_rounds requires an eval set")
	}
	rows, cols := X.Dims()
	opts := []dmatrix.Option{
		dmatrix.WithLabel(labels),
		dmatrix.WithNThread(m.NJobs),
		dmatrix.WithMaxBin(m.MaxBin),
	}
	if cfg.sampleWeight != nil {
		opts = append(opts, dmatrix.WithWeight(cfg.sampleWeight))
	}
	if cfg.baseMargin != nil {
		opts = append(opts, dmatrix.WithBaseMargin(cfg.baseMargin))
	}
	if cfg.featureNames != nil {
		opts = append(opts, dmatrix.WithFeatureNames(cfg.featureNames))
	}
	dtrain, err := dmatrix.New(X, opts...)
	if err != nil {
		return err
	}

	evals := make([]booster.EvalSet, 0, len(cfg.evalSets))
	for i, es := range cfg.evalSets {
		ey, err := labelColumn(op, es.X, es.Y)
		if err != nil {
			return scigoErrors.Wrapf(err, "eval set %d", i)
		}
		eopts := []dmatrix.Option{dmatrix.WithLabel(ey), dmatrix.WithNThread(m.NJobs)}
		if es.Weight != nil {
			eopts = append(eopts, dmatrix.WithWeight(es.Weight))
		}
		d, err := dmatrix.New(es.X, eopts...)
		if err != nil {
			return scigoErrors.Wrapf(err, "eval set %d", i)
		}
		evals = append(evals, booster.EvalSet{Data: d, Name: "validation_" + strconv.Itoa(i)})
	}

	params := m.boosterParams()
	for k, v := range overrides {
		params[k] = v
	}
	m.logger.Info("fitting",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"objective", params["objective"],
		log.HyperParamsKey, params,
	)

	history := booster.EvalsResult{}
	trainOpts := []booster.TrainOption{booster.WithEvalsResult(history)}
	if m.EarlyStoppingRounds > 0 {
		trainOpts = append(trainOpts, booster.WithEarlyStopping(m.EarlyStoppingRounds))
	}
	if cfg.verbose != nil {
		trainOpts = append(trainOpts, booster.WithCallbacks(booster.PrintEvaluation(cfg.verbose, 1)))
	}
	ctx := cfg.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	bst, err := booster.Train(ctx, params, dtrain, m.NEstimators, evals, trainOpts...)
	if err != nil {
		return err
	}

	m.booster = bst
	m.evalsResult = history
	m.state.SetDimensions(cols, rows)
	m.state.SetFitted()
	return nil
}

// predictMatrix builds a prediction matrix after checking the fitted state
// and the feature count.
func (m *XGBModel) predictMatrix(op string, X mat.Matrix) (*dmatrix.DMatrix, error) {
	if err := m.state.RequireFitted(op, "Predict"); err != nil {
		return nil, err
	}
	nFeatures, _ := m.state.GetDimensions()
	if _, cols := X.Dims(); cols != nFeatures {
		return nil, scigoErrors.NewDimensionError(op, nFeatures, cols, 1)
	}
	return dmatrix.New(X, dmatrix.WithNThread(m.NJobs))
}

// iterationEnd limits prediction to the best round after early stopping.
func (m *XGBModel) iterationEnd() int {
	if m.EarlyStoppingRounds == 0 {
		return 0
	}
	v, ok := m.booster.Attr("best_iteration")
	if !ok {
		return 0
	}
	best, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return best + 1
}

func (m *XGBModel) predict(op string, X mat.Matrix, outputMargin bool) (*mat.Dense, error) {
	d, err := m.predictMatrix(op, X)
	if err != nil {
		return nil, err
	}
	return m.booster.Predict(d, booster.PredictOptions{OutputMargin: outputMargin, IterationEnd: m.iterationEnd()})
}

// IsFitted reports whether Fit has completed.
func (m *XGBModel) IsFitted() bool { return m.state.IsFitted() }

// State returns the fitted state with the current hyperparameters.
func (m *XGBModel) State() model.ModelState {
	s := m.state.GetState()
	s.Params = m.GetParams()
	return s
}

// GetBooster returns the trained booster.
func (m *XGBModel) GetBooster() (*booster.Booster, error) {
	if err := m.state.RequireFitted("XGBModel", "GetBooster"); err != nil {
		return nil, err
	}
	return m.booster, nil
}

// EvalsResult returns the per-round metric history of the eval sets.
func (m *XGBModel) EvalsResult() (booster.EvalsResult, error) {
	if err := m.state.RequireFitted("XGBModel", "EvalsResult"); err != nil {
		return nil, err
	}
	return m.evalsResult, nil
}

// FeatureImportances returns the normalised total gain of every feature;
// features never split on get 0.
func (m *XGBModel) FeatureImportances() ([]float64, error) {
	if err := m.state.RequireFitted("XGBModel", "FeatureImportances"); err != nil {
		return nil, err
	}
	scores, err := m.booster.GetScore("gain")
	if err != nil {
		return nil, err
	}
	n := m.booster.NumFeature()
	names := m.booster.FeatureNames()
	out := make([]float64, n)
	total := 0.0
	for f := 0; f < n; f++ {
		name := "f" + strconv.Itoa(f)
		if f < len(names) {
			name = names[f]
		}
		out[f] = scores[name]
		total += out[f]
	}
	if total > 0 {
		for f := range out {
			out[f] /= total
		}
	}
	return out, nil
}

// SaveModel writes the booster to path.
func (m *XGBModel) SaveModel(path string) error {
	if err := m.state.RequireFitted("XGBModel", "SaveModel"); err != nil {
		return err
	}
	return m.booster.SaveModel(path)
}

// LoadModel replaces the booster with one read from path.
func (m *XGBModel) LoadModel(path string) error {
	bst, err := booster.LoadModel(path)
	if err != nil {
		return err
	}
	m.booster = bst
	m.evalsResult = nil
	m.state.SetDimensions(bst.NumFeature(), 0)
	m.state.SetFitted()
	return nil
}
