package smoke

import (
	"context"
	"io"

	"github.com/YuminosukeSato/mllite/booster"
	"github.com/YuminosukeSato/mllite/datasets"
	"github.com/YuminosukeSato/mllite/dmatrix"
	"github.com/YuminosukeSato/mllite/internal/config"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
)

// toyMissing marks missing entries of the toy buffer.
const toyMissing = -1

// trainingMatrix loads cfg.URI, or builds the toy multiclass matrix when no
// URI is set.
func trainingMatrix(cfg config.BoosterConfig) (*dmatrix.DMatrix, error) {
	if cfg.URI != "" {
		return dmatrix.FromURI(cfg.URI)
	}
	values, labels := datasets.ToyMulticlass(cfg.Rows, cfg.Cols)
	d, err := dmatrix.FromMat(values, cfg.Rows, cfg.Cols, toyMissing)
	if err != nil {
		return nil, err
	}
	if err := d.SetFloatInfo("label", labels); err != nil {
		return nil, err
	}
	return d, nil
}

// RunBoosterLoop drives a booster round by round: parameters are applied in
// the configured order, every round is followed by an evaluation on the
// training matrix printed as "EVAL_RESULT_AT_ITERATION <round> <eval>", and
// the feature count is printed last.
func RunBoosterLoop(ctx context.Context, w io.Writer, cfg config.BoosterConfig) error {
	logger := log.GetLoggerWithName("smoke.booster")
	dtrain, err := trainingMatrix(cfg)
	if err != nil {
		return err
	}
	bst, err := booster.New(dtrain)
	if err != nil {
		return err
	}
	for _, param := range cfg.Params {
		if err := bst.SetParam(param.Key, param.Value); err != nil {
			return scigoErrors.Wrapf(err, "set %s", param.Key)
		}
	}

	p := &printer{w: w}
	dmats := []*dmatrix.DMatrix{dtrain}
	names := []string{"train"}
	for i := 0; i < cfg.Iterations; i++ {
		if err := bst.UpdateOneIter(ctx, i, dtrain); err != nil {
			return scigoErrors.Wrapf(err, "iteration %d", i)
		}
		result, err := bst.EvalOneIter(i, dmats, names)
		if err != nil {
			return scigoErrors.Wrapf(err, "iteration %d", i)
		}
		p.printf("EVAL_RESULT_AT_ITERATION %d %s\n", i+1, result)
		if p.err != nil {
			return p.err
		}
	}
	p.printf("NUM_FEATURES = %d\n", bst.NumFeature())

	logger.Info("booster loop finished",
		log.IterationKey, cfg.Iterations,
		log.SamplesKey, dtrain.NumRow(),
		log.FeaturesKey, dtrain.NumCol(),
	)
	return p.err
}
