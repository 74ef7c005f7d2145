// Package booster implements gradient boosted regression trees over dmatrix
// training matrices.
//
// A Booster is configured with string key/value parameters, grows one tree
// per output group and boosting round with UpdateOneIter and reports metric
// values with EvalOneIter. Train wraps the round loop with evaluation
// history, callbacks and early stopping.
package booster

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/YuminosukeSato/mllite/dmatrix"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Booster is a tree ensemble together with its training state.
type Booster struct {
	mu sync.Mutex

	params     Params
	objective  Objective
	metrics    []Metric
	configured bool

	numFeature   int
	featureNames []string
	trees        []*Tree

	rng    *rand.Rand
	caches map[*dmatrix.DMatrix]*matCache
	attrs  map[string]string
	logger log.Logger
}

// matCache keeps the margins of a matrix up to date with the ensemble.
type matCache struct {
	margin []float64
	trees  int
	bins   *binnedMatrix
}

// PredictOptions selects the output of Predict.
type PredictOptions struct {
	// OutputMargin returns raw margins instead of transformed predictions.
	OutputMargin bool
	// IterationEnd limits prediction to rounds [0, IterationEnd); 0 uses all.
	IterationEnd int
}

// EvalResult is one metric value of one evaluation matrix.
type EvalResult struct {
	Data   string
	Metric string
	Value  float64
}

// New creates an untrained booster. The given matrices get margin caches.
func New(cache ...*dmatrix.DMatrix) (*Booster, error) {
	b := &Booster{
		params: DefaultParams(),
		caches: make(map[*dmatrix.DMatrix]*matCache),
		attrs:  make(map[string]string),
		logger: log.GetLoggerWithName("booster"),
	}
	for _, d := range cache {
		if d == nil {
			return nil, scigoErrors.NewValueError("booster.New", "nil matrix in cache")
		}
		b.caches[d] = nil
	}
	return b, nil
}

// SetParam sets one parameter. Changing parameters after training started
// only affects later rounds.
func (b *Booster) SetParam(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name := canonical[key]
	if b.configured && (name == "objective" || name == "num_class") {
		return scigoErrors.NewValueError("Booster.SetParam", key+" cannot change after training started")
	}
	if err := b.params.Set(key, value); err != nil {
		return err
	}
	if b.configured && name == "eval_metric" {
		return b.configureMetrics()
	}
	return nil
}

// Params returns a copy of the current parameters.
func (b *Booster) Params() Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.params
	p.EvalMetrics = append([]string(nil), p.EvalMetrics...)
	return p
}

// SetAttr stores a string attribute, e.g. best_iteration.
func (b *Booster) SetAttr(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attrs[key] = value
}

// Attr returns an attribute and whether it is set.
func (b *Booster) Attr(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.attrs[key]
	return v, ok
}

// SetFeatureNames overrides the names used by dumps and importance scores.
func (b *Booster) SetFeatureNames(names []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.featureNames = append([]string(nil), names...)
}

// FeatureNames returns the names used by dumps and importance scores, nil
// when the features are unnamed.
func (b *Booster) FeatureNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.featureNames...)
}

// NumFeature returns the number of features the booster was trained on.
func (b *Booster) NumFeature() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numFeature
}

// NumBoostedRounds returns the number of completed rounds.
func (b *Booster) NumBoostedRounds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rounds()
}

func (b *Booster) rounds() int {
	if b.objective == nil {
		return 0
	}
	return len(b.trees) / b.objective.Groups()
}

func (b *Booster) groups() int {
	if b.objective == nil {
		return 1
	}
	return b.objective.Groups()
}

// configure fixes objective, feature count and base score on first use.
func (b *Booster) configure(dtrain *dmatrix.DMatrix) error {
	if b.configured {
		if dtrain.NumCol() != b.numFeature {
			return scigoErrors.NewDimensionError("Booster.UpdateOneIter", b.numFeature, dtrain.NumCol(), 1)
		}
		return nil
	}
	obj, err := NewObjective(b.params)
	if err != nil {
		return err
	}
	b.objective = obj
	if err := b.configureMetrics(); err != nil {
		return err
	}
	b.numFeature = dtrain.NumCol()
	if b.featureNames == nil && dtrain.FeatureNames() != nil {
		b.featureNames = append([]string(nil), dtrain.FeatureNames()...)
	}
	if math.IsNaN(b.params.BaseScore) {
		base := obj.EstimateBaseScore(dtrain.Label(), dtrain.Weight())
		if err := scigoErrors.CheckScalar("base_score", base, 0); err != nil {
			return err
		}
		b.params.BaseScore = base
	}
	b.rng = newRand(b.params.Seed, 0)
	b.configured = true

	b.logger.Debug("booster configured",
		log.ModelNameKey, b.params.Booster,
		"objective", obj.Name(),
		log.FeaturesKey, b.numFeature,
		"base_score", b.params.BaseScore,
		log.LearningRateKey, b.params.Eta,
		log.RandomSeedKey, b.params.Seed,
	)
	return nil
}

// newRand seeds the sampling source; offset keeps resumed training from
// replaying the draws of earlier rounds.
func newRand(seed int64, offset int) *rand.Rand {
	return rand.New(rand.NewSource(seed + int64(offset)))
}

func (b *Booster) configureMetrics() error {
	names := b.params.EvalMetrics
	if len(names) == 0 && b.objective != nil {
		names = []string{b.objective.DefaultMetric()}
	}
	b.metrics = b.metrics[:0]
	for _, name := range names {
		m, err := NewMetric(name)
		if err != nil {
			return err
		}
		b.metrics = append(b.metrics, m)
	}
	return nil
}

// cacheFor returns the up-to-date margin cache of d, creating it if needed.
func (b *Booster) cacheFor(d *dmatrix.DMatrix) (*matCache, error) {
	c := b.caches[d]
	if c == nil {
		margin, err := b.initialMargin(d)
		if err != nil {
			return nil, err
		}
		c = &matCache{margin: margin}
		b.caches[d] = c
	}
	if c.trees < len(b.trees) {
		b.accumulate(d, c.margin, b.trees[c.trees:])
		c.trees = len(b.trees)
	}
	return c, nil
}

func (b *Booster) initialMargin(d *dmatrix.DMatrix) ([]float64, error) {
	groups := b.groups()
	rows := d.NumRow()
	if bm := d.BaseMargin(); bm != nil {
		if d.BaseMarginGroups() != groups {
			return nil, scigoErrors.NewDimensionError("base_margin", rows*groups, len(bm), 0)
		}
		return append([]float64(nil), bm...), nil
	}
	base := 0.0
	if b.objective != nil && !math.IsNaN(b.params.BaseScore) {
		base = b.objective.ProbToMargin(b.params.BaseScore)
	}
	margin := make([]float64, rows*groups)
	for i := range margin {
		margin[i] = base
	}
	return margin, nil
}

// accumulate adds the leaf values of trees to margin.
func (b *Booster) accumulate(d *dmatrix.DMatrix, margin []float64, trees []*Tree) {
	groups := b.groups()
	data := d.Data()
	rows := d.NumRow()
	parallelRows(b.params.NThread, rows, func(i int) {
		row := data.RawRowView(i)
		for _, t := range trees {
			margin[i*groups+t.Group] += t.Predict(row)
		}
	})
}

// UpdateOneIter runs one boosting round on dtrain: one tree per output group.
func (b *Booster) UpdateOneIter(ctx context.Context, iter int, dtrain *dmatrix.DMatrix) (err error) {
	defer scigoErrors.Recover(&err, "Booster.UpdateOneIter")
	if err := ctx.Err(); err != nil {
		return scigoErrors.WithStack(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if dtrain == nil {
		return scigoErrors.NewValueError("Booster.UpdateOneIter", "nil training matrix")
	}
	label := dtrain.Label()
	if label == nil {
		return scigoErrors.NewValueError("Booster.UpdateOneIter", "training matrix has no label")
	}
	if err := b.configure(dtrain); err != nil {
		return err
	}
	for _, y := range label {
		if err := b.objective.CheckLabel(y); err != nil {
			return err
		}
	}

	start := time.Now()
	c, err := b.cacheFor(dtrain)
	if err != nil {
		return err
	}
	if c.bins == nil {
		cuts := dtrain.Cuts()
		if cuts == nil {
			cuts = dmatrix.ComputeCuts(dtrain.Data(), dtrain.Weight(), b.params.MaxBin)
		}
		c.bins = newBinnedMatrix(dtrain, cuts, b.params.NThread)
	}

	rows := dtrain.NumRow()
	groups := b.groups()
	weight := dtrain.Weight()
	grad := make([]float64, rows*groups)
	hess := make([]float64, rows*groups)
	parallelRows(b.params.NThread, rows, func(i int) {
		w := 1.0
		if weight != nil {
			w = weight[i]
		}
		lo, hi := i*groups, (i+1)*groups
		b.objective.Gradient(c.margin[lo:hi], label[i], w, grad[lo:hi], hess[lo:hi])
	})
	if err := scigoErrors.CheckNumericalStability("gradient", grad, iter); err != nil {
		return err
	}

	sampled := b.sampleRows(rows)
	features := b.sampleFeatures()
	newTrees := make([]*Tree, 0, groups)
	gpair := make([]gradPair, rows)
	for k := 0; k < groups; k++ {
		for i := 0; i < rows; i++ {
			gpair[i] = gradPair{grad[i*groups+k], hess[i*groups+k]}
		}
		g := &grower{params: b.params, bins: c.bins, gpair: gpair, features: features}
		tree, sums := g.grow(sampled)
		tree.Group = k
		tree.prune(b.params.Gamma, b.params.Eta, b.params.Lambda, b.params.Alpha, sums)
		newTrees = append(newTrees, tree)
	}

	b.trees = append(b.trees, newTrees...)
	b.accumulate(dtrain, c.margin, newTrees)
	c.trees = len(b.trees)

	b.logger.Debug("boosting round finished",
		log.OperationKey, log.OperationUpdate,
		log.IterationKey, iter,
		log.SamplesKey, len(sampled),
		log.TreesKey, len(b.trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (b *Booster) sampleRows(rows int) []int {
	out := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		if b.params.Subsample >= 1 || b.rng.Float64() < b.params.Subsample {
			out = append(out, i)
		}
	}
	return out
}

func (b *Booster) sampleFeatures() []int {
	n := b.numFeature
	if b.params.ColsampleTree >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := max(1, int(math.Ceil(b.params.ColsampleTree*float64(n))))
	out := b.rng.Perm(n)[:k]
	sort.Ints(out)
	return out
}

// Eval computes every configured metric on every matrix.
func (b *Booster) Eval(dmats []*dmatrix.DMatrix, names []string) ([]EvalResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eval(dmats, names)
}

func (b *Booster) eval(dmats []*dmatrix.DMatrix, names []string) ([]EvalResult, error) {
	if len(dmats) != len(names) {
		return nil, scigoErrors.NewDimensionError("Booster.Eval", len(dmats), len(names), 0)
	}
	if b.objective == nil {
		return nil, scigoErrors.NewNotFittedError("Booster", "Eval")
	}
	groups := b.groups()
	var results []EvalResult
	for i, d := range dmats {
		if d.NumCol() != b.numFeature {
			return nil, scigoErrors.NewDimensionError("Booster.Eval("+names[i]+")", b.numFeature, d.NumCol(), 1)
		}
		if d.Label() == nil {
			return nil, scigoErrors.NewValueError("Booster.Eval", names[i]+" has no label")
		}
		c, err := b.cacheFor(d)
		if err != nil {
			return nil, err
		}
		preds := make([]float64, len(c.margin))
		for r := 0; r < d.NumRow(); r++ {
			b.objective.EvalTransform(c.margin[r*groups:(r+1)*groups], preds[r*groups:(r+1)*groups])
		}
		for _, m := range b.metrics {
			results = append(results, EvalResult{
				Data:   names[i],
				Metric: m.Name(),
				Value:  m.Eval(preds, groups, d.Label(), d.Weight()),
			})
		}
	}
	return results, nil
}

// EvalOneIter formats the metrics of every matrix as
// "[iter]\tname-metric:value...".
func (b *Booster) EvalOneIter(iter int, dmats []*dmatrix.DMatrix, names []string) (string, error) {
	results, err := b.Eval(dmats, names)
	if err != nil {
		return "", err
	}
	return FormatEval(iter, results), nil
}

// FormatEval renders results in the evaluation log format.
func FormatEval(iter int, results []EvalResult) string {
	var sb strings.Builder
	sb.WriteString("[" + strconv.Itoa(iter) + "]")
	for _, r := range results {
		sb.WriteString("\t" + r.Data + "-" + r.Metric + ":" + strconv.FormatFloat(r.Value, 'g', 17, 64))
	}
	return sb.String()
}

// Predict returns predictions for d: rows x output columns, or rows x groups
// margins when OutputMargin is set.
func (b *Booster) Predict(d *dmatrix.DMatrix, opts PredictOptions) (*mat.Dense, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.objective == nil {
		return nil, scigoErrors.NewNotFittedError("Booster", "Predict")
	}
	if d.NumCol() != b.numFeature {
		return nil, scigoErrors.NewDimensionError("Booster.Predict", b.numFeature, d.NumCol(), 1)
	}
	groups := b.groups()
	rounds := b.rounds()
	if opts.IterationEnd < 0 || opts.IterationEnd > rounds {
		return nil, scigoErrors.NewValidationError("IterationEnd", "must be in [0, rounds]", opts.IterationEnd)
	}

	var margin []float64
	if opts.IterationEnd == 0 || opts.IterationEnd == rounds {
		if _, cached := b.caches[d]; cached {
			c, err := b.cacheFor(d)
			if err != nil {
				return nil, err
			}
			margin = c.margin
		}
	}
	if margin == nil {
		end := rounds
		if opts.IterationEnd > 0 {
			end = opts.IterationEnd
		}
		var err error
		margin, err = b.initialMargin(d)
		if err != nil {
			return nil, err
		}
		b.accumulate(d, margin, b.trees[:end*groups])
	}

	rows := d.NumRow()
	if opts.OutputMargin {
		return mat.NewDense(rows, groups, append([]float64(nil), margin...)), nil
	}
	cols := b.objective.OutputColumns()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		b.objective.PredTransform(margin[r*groups:(r+1)*groups], out[r*cols:(r+1)*cols])
	}
	return mat.NewDense(rows, cols, out), nil
}
