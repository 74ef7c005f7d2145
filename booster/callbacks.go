package booster

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// CallbackEnv is passed to callbacks after every round.
type CallbackEnv struct {
	Booster      *Booster
	Iteration    int
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  []EvalResult
	StopTraining bool
}

// Value returns the result for data/metric and whether it was evaluated.
func (env *CallbackEnv) Value(data, metric string) (float64, bool) {
	for _, r := range env.EvalResults {
		if r.Data == data && r.Metric == metric {
			return r.Value, true
		}
	}
	return 0, false
}

// Callback runs after each boosting round.
type Callback func(env *CallbackEnv) error

// EvalsResult is the evaluation history: data name -> metric -> per-round values.
type EvalsResult map[string]map[string][]float64

// PrintEvaluation writes the evaluation line every period rounds.
func PrintEvaluation(w io.Writer, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if len(env.EvalResults) == 0 || env.Iteration%period != 0 {
			return nil
		}
		_, err := fmt.Fprintln(w, FormatEval(env.Iteration, env.EvalResults))
		return err
	}
}

// RecordEvaluation appends every round's results to history.
func RecordEvaluation(history EvalsResult) Callback {
	return func(env *CallbackEnv) error {
		for _, r := range env.EvalResults {
			if history[r.Data] == nil {
				history[r.Data] = make(map[string][]float64)
			}
			history[r.Data][r.Metric] = append(history[r.Data][r.Metric], r.Value)
		}
		return nil
	}
}

// EarlyStopping tracks the best score of one metric.
type EarlyStopping struct {
	Rounds          int     // rounds without improvement before stopping
	BestScore       float64 // best score so far
	BestIteration   int     // round of the best score
	RoundsNoImprove int     // current rounds without improvement
	Metric          string
	Minimize        bool
	Enabled         bool
}

// NewEarlyStopping creates an early stopping tracker for metric.
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{Enabled: false}
	}
	minimize := true
	switch metric {
	case "auc", "aucpr", "map", "ndcg":
		minimize = false
	}
	best := math.Inf(1)
	if !minimize {
		best = math.Inf(-1)
	}
	return &EarlyStopping{
		Rounds:    rounds,
		BestScore: best,
		Metric:    metric,
		Minimize:  minimize,
		Enabled:   true,
	}
}

// Update records the score of iteration and reports whether to stop.
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	if !es.Enabled {
		return false
	}
	improved := score > es.BestScore
	if es.Minimize {
		improved = score < es.BestScore
	}
	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.RoundsNoImprove >= es.Rounds
}

// ShouldStop reports whether the patience is exhausted.
func (es *EarlyStopping) ShouldStop() bool {
	return es.Enabled && es.RoundsNoImprove >= es.Rounds
}

// EarlyStoppingCallback stops training when the last metric on the last
// evaluation matrix has not improved for rounds rounds. It records
// best_iteration and best_score as booster attributes.
func EarlyStoppingCallback(rounds int) Callback {
	var es *EarlyStopping
	return func(env *CallbackEnv) error {
		if len(env.EvalResults) == 0 {
			return nil
		}
		last := env.EvalResults[len(env.EvalResults)-1]
		if es == nil {
			es = NewEarlyStopping(rounds, last.Metric)
		}
		stop := es.Update(env.Iteration, last.Value)
		env.Booster.SetAttr("best_iteration", strconv.Itoa(es.BestIteration))
		env.Booster.SetAttr("best_score", strconv.FormatFloat(es.BestScore, 'g', 17, 64))
		if stop {
			env.Booster.logger.Info("early stopping",
				"iteration", env.Iteration,
				"best_iteration", es.BestIteration,
				"data", last.Data,
				"metric", last.Metric,
				"best_score", es.BestScore,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first round.
func TimeLimit(maxDuration time.Duration) Callback {
	var start time.Time
	return func(env *CallbackEnv) error {
		if start.IsZero() {
			start = env.BeginTime
		}
		if env.EndTime.Sub(start) > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}

// LearningRateSchedule sets eta for the next round from schedule(iteration+1).
func LearningRateSchedule(schedule func(iteration int) float64) Callback {
	return func(env *CallbackEnv) error {
		return env.Booster.SetParam("eta", formatFloat(schedule(env.Iteration+1)))
	}
}
