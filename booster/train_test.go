package booster

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainRecordsHistory(t *testing.T) {
	dtrain := classMatrix(t)
	history := EvalsResult{}
	var out bytes.Buffer

	bst, err := Train(context.Background(), map[string]string{
		"objective":   "multi:softprob",
		"num_class":   "3",
		"eval_metric": "mlogloss,merror",
		"seed":        "1789",
	}, dtrain, 4, []EvalSet{{Data: dtrain, Name: "train"}},
		WithEvalsResult(history),
		WithCallbacks(PrintEvaluation(&out, 2)),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, bst.NumBoostedRounds())

	loss := history["train"]["mlogloss"]
	require.Len(t, loss, 4)
	for i := 1; i < len(loss); i++ {
		assert.Less(t, loss[i], loss[i-1])
	}
	assert.Len(t, history["train"]["merror"], 4)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[0]\ttrain-mlogloss:"))
	assert.True(t, strings.HasPrefix(lines[1], "[2]\ttrain-mlogloss:"))
}

func TestTrainEarlyStopping(t *testing.T) {
	dtrain := stepMatrix(t)
	dvalid := stepMatrix(t)

	logs, restore := log.CaptureLogs(log.LevelDebug)
	t.Cleanup(restore)

	// eta 0 leaves the margins unchanged, so the metric never improves.
	bst, err := Train(context.Background(), map[string]string{"eta": "0"},
		dtrain, 20, []EvalSet{{Data: dtrain, Name: "train"}, {Data: dvalid, Name: "valid"}},
		WithEarlyStopping(2),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, bst.NumBoostedRounds())
	best, ok := bst.Attr("best_iteration")
	require.True(t, ok)
	assert.Equal(t, "0", best)
	_, ok = bst.Attr("best_score")
	assert.True(t, ok)

	rounds := logs.FindAll("boosting round finished")
	require.Len(t, rounds, 3)
	for i, r := range rounds {
		assert.Equal(t, "booster", r.Fields[log.ComponentKey])
		assert.Equal(t, i, r.Fields[log.IterationKey])
		assert.Equal(t, i+1, r.Fields[log.TreesKey])
	}
	stopped, ok := logs.Find("early stopping")
	require.True(t, ok)
	assert.Equal(t, 2, stopped.Fields["iteration"])
	assert.Equal(t, 0, stopped.Fields["best_iteration"])
	assert.Equal(t, "valid", stopped.Fields["data"])
	finished, ok := logs.Find("training finished")
	require.True(t, ok)
	assert.Equal(t, 3, finished.Fields[log.IterationKey])
}

func TestTrainValidation(t *testing.T) {
	dtrain := stepMatrix(t)
	ctx := context.Background()

	_, err := Train(ctx, nil, dtrain, 5, nil, WithEarlyStopping(3))
	assert.Error(t, err)

	_, err = Train(ctx, nil, dtrain, -1, nil)
	assert.Error(t, err)

	_, err = Train(ctx, map[string]string{"max_depth": "x"}, dtrain, 1, nil)
	assert.Error(t, err)
}

func TestTrainContinuesBooster(t *testing.T) {
	dtrain := stepMatrix(t)
	ctx := context.Background()

	bst, err := Train(ctx, map[string]string{"eta": "0.1"}, dtrain, 2, nil)
	require.NoError(t, err)
	bst, err = Train(ctx, nil, dtrain, 3, nil, WithBooster(bst))
	require.NoError(t, err)
	assert.Equal(t, 5, bst.NumBoostedRounds())
}

func TestTrainCallbackError(t *testing.T) {
	failing := func(env *CallbackEnv) error {
		if env.Iteration == 1 {
			return assert.AnError
		}
		return nil
	}
	_, err := Train(context.Background(), nil, stepMatrix(t), 5, nil, WithCallbacks(failing))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTrainCallbackPanic(t *testing.T) {
	panicking := func(env *CallbackEnv) error {
		var history EvalsResult
		history["train"]["rmse"] = nil
		return nil
	}
	_, err := Train(context.Background(), nil, stepMatrix(t), 3, nil, WithCallbacks(panicking))
	var perr *scigoErrors.PanicError
	require.True(t, scigoErrors.As(err, &perr))
	assert.Equal(t, "callback", perr.Operation)
	assert.Contains(t, err.Error(), "callback at round 0")
}

func TestTrainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, nil, stepMatrix(t), 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEarlyStoppingTracker(t *testing.T) {
	es := NewEarlyStopping(2, "rmse")
	require.True(t, es.Enabled)
	assert.True(t, es.Minimize)

	assert.False(t, es.Update(0, 1.0))
	assert.False(t, es.Update(1, 0.5))
	assert.False(t, es.Update(2, 0.6))
	assert.True(t, es.Update(3, 0.5))
	assert.True(t, es.ShouldStop())
	assert.Equal(t, 1, es.BestIteration)
	assert.Equal(t, 0.5, es.BestScore)

	disabled := NewEarlyStopping(0, "rmse")
	assert.False(t, disabled.Update(0, 1))
	assert.False(t, disabled.ShouldStop())
}

func TestTimeLimit(t *testing.T) {
	cb := TimeLimit(time.Second)
	begin := time.Now()
	env := &CallbackEnv{BeginTime: begin, EndTime: begin.Add(500 * time.Millisecond)}
	require.NoError(t, cb(env))
	assert.False(t, env.StopTraining)

	env = &CallbackEnv{BeginTime: begin.Add(time.Second), EndTime: begin.Add(2 * time.Second)}
	require.NoError(t, cb(env))
	assert.True(t, env.StopTraining)
}

func TestLearningRateSchedule(t *testing.T) {
	dtrain := stepMatrix(t)
	var etas []float64
	record := func(env *CallbackEnv) error {
		etas = append(etas, env.Booster.Params().Eta)
		return nil
	}
	_, err := Train(context.Background(), nil, dtrain, 3, nil,
		WithCallbacks(LearningRateSchedule(func(i int) float64 { return 1.0 / float64(i+1) }), record))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.0 / 3, 0.25}, etas)
}

func TestCallbackEnvValue(t *testing.T) {
	env := &CallbackEnv{EvalResults: []EvalResult{{Data: "valid", Metric: "rmse", Value: 0.25}}}
	v, ok := env.Value("valid", "rmse")
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)
	_, ok = env.Value("train", "rmse")
	assert.False(t, ok)
}
