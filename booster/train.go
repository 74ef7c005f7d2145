package booster

import (
	"context"
	"sort"
	"time"

	"github.com/YuminosukeSato/mllite/dmatrix"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
)

// EvalSet names a matrix evaluated after every round.
type EvalSet struct {
	Data *dmatrix.DMatrix
	Name string
}

type trainConfig struct {
	callbacks     []Callback
	earlyStopping int
	evalsResult   EvalsResult
	booster       *Booster
}

// TrainOption configures Train.
type TrainOption func(*trainConfig)

// WithCallbacks adds callbacks run after every round, in order.
func WithCallbacks(cbs ...Callback) TrainOption {
	return func(c *trainConfig) { c.callbacks = append(c.callbacks, cbs...) }
}

// WithEarlyStopping stops after rounds rounds without improvement of the last
// metric on the last eval set.
func WithEarlyStopping(rounds int) TrainOption {
	return func(c *trainConfig) { c.earlyStopping = rounds }
}

// WithEvalsResult records the evaluation history into history.
func WithEvalsResult(history EvalsResult) TrainOption {
	return func(c *trainConfig) { c.evalsResult = history }
}

// WithBooster continues training an existing booster.
func WithBooster(b *Booster) TrainOption {
	return func(c *trainConfig) { c.booster = b }
}

// Train boosts for up to rounds rounds on dtrain. Parameters are applied in
// sorted key order.
func Train(ctx context.Context, params map[string]string, dtrain *dmatrix.DMatrix, rounds int, evals []EvalSet, opts ...TrainOption) (*Booster, error) {
	cfg := &trainConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if rounds < 0 {
		return nil, scigoErrors.NewValidationError("num_boost_round", "must be non-negative", rounds)
	}
	if cfg.earlyStopping > 0 && len(evals) == 0 {
		return nil, scigoErrors.NewValueError("booster.Train", "early stopping requires at least one eval set")
	}

	cache := []*dmatrix.DMatrix{dtrain}
	dmats := make([]*dmatrix.DMatrix, len(evals))
	names := make([]string, len(evals))
	for i, e := range evals {
		cache = append(cache, e.Data)
		dmats[i], names[i] = e.Data, e.Name
	}

	bst := cfg.booster
	if bst == nil {
		var err error
		if bst, err = New(cache...); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := bst.SetParam(k, params[k]); err != nil {
			return nil, err
		}
	}

	callbacks := append([]Callback(nil), cfg.callbacks...)
	if cfg.evalsResult != nil {
		callbacks = append(callbacks, RecordEvaluation(cfg.evalsResult))
	}
	if cfg.earlyStopping > 0 {
		callbacks = append(callbacks, EarlyStoppingCallback(cfg.earlyStopping))
	}

	logger := log.GetLoggerWithName("booster")
	start := bst.NumBoostedRounds()
	for iter := start; iter < start+rounds; iter++ {
		begin := time.Now()
		if err := bst.UpdateOneIter(ctx, iter, dtrain); err != nil {
			return nil, scigoErrors.Wrapf(err, "round %d", iter)
		}
		env := &CallbackEnv{Booster: bst, Iteration: iter, BeginTime: begin}
		if len(evals) > 0 {
			results, err := bst.Eval(dmats, names)
			if err != nil {
				return nil, scigoErrors.Wrapf(err, "round %d", iter)
			}
			env.EvalResults = results
		}
		env.EndTime = time.Now()
		for _, cb := range callbacks {
			if err := scigoErrors.SafeExecute("callback", func() error { return cb(env) }); err != nil {
				return nil, scigoErrors.Wrapf(err, "callback at round %d", iter)
			}
		}
		if env.StopTraining {
			break
		}
	}

	logger.Info("training finished",
		log.OperationKey, log.OperationFit,
		log.IterationKey, bst.NumBoostedRounds(),
		log.SamplesKey, dtrain.NumRow(),
		log.FeaturesKey, dtrain.NumCol(),
	)
	return bst, nil
}
