package booster

import (
	"math"
	"sort"
	"strconv"
	"strings"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
)

// Params holds the parsed training configuration.
type Params struct {
	Booster        string
	Objective      string
	NumClass       int
	MaxDepth       int
	Eta            float64
	MinChildWeight float64
	Lambda         float64
	Alpha          float64
	Gamma          float64
	MaxBin         int
	BaseScore      float64 // NaN until set or estimated
	Seed           int64
	NThread        int
	Device         string
	Subsample      float64
	ColsampleTree  float64
	MaxDeltaStep   float64 // hessian offset of count:poisson
	EvalMetrics    []string
}

// DefaultParams returns the defaults of every parameter.
func DefaultParams() Params {
	return Params{
		Booster:        "gbtree",
		Objective:      "reg:squarederror",
		MaxDepth:       6,
		Eta:            0.3,
		MinChildWeight: 1,
		Lambda:         1,
		MaxBin:         256,
		BaseScore:      math.NaN(),
		Device:         "cpu",
		Subsample:      1,
		ColsampleTree:  1,
		MaxDeltaStep:   0.7,
	}
}

// canonical maps accepted keys, including aliases, to their canonical name.
var canonical = map[string]string{
	"booster":          "booster",
	"objective":        "objective",
	"num_class":        "num_class",
	"max_depth":        "max_depth",
	"eta":              "eta",
	"learning_rate":    "eta",
	"min_child_weight": "min_child_weight",
	"lambda":           "lambda",
	"reg_lambda":       "lambda",
	"alpha":            "alpha",
	"reg_alpha":        "alpha",
	"gamma":            "gamma",
	"min_split_loss":   "gamma",
	"max_bin":          "max_bin",
	"base_score":       "base_score",
	"seed":             "seed",
	"random_state":     "seed",
	"nthread":          "nthread",
	"n_jobs":           "nthread",
	"device":           "device",
	"subsample":        "subsample",
	"colsample_bytree": "colsample_bytree",
	"max_delta_step":   "max_delta_step",
	"eval_metric":      "eval_metric",
}

// Set parses one key/value pair. Unknown keys produce an
// UnusedParameterWarning and are otherwise ignored.
func (p *Params) Set(key, value string) error {
	name, ok := canonical[key]
	if !ok {
		scigoErrors.Warn(scigoErrors.NewUnusedParameterWarning("booster", key, value))
		return nil
	}
	var err error
	switch name {
	case "booster":
		if value != "gbtree" {
			return scigoErrors.NewValidationError(key, "only gbtree is supported", value)
		}
		p.Booster = value
	case "objective":
		if _, ok := objectives[value]; !ok {
			return scigoErrors.NewValidationError(key, "unknown objective", value)
		}
		p.Objective = value
	case "num_class":
		p.NumClass, err = parseInt(key, value, 0)
	case "max_depth":
		p.MaxDepth, err = parseInt(key, value, 0)
	case "eta":
		p.Eta, err = parseFloat(key, value, 0, math.Inf(1))
	case "min_child_weight":
		p.MinChildWeight, err = parseFloat(key, value, 0, math.Inf(1))
	case "lambda":
		p.Lambda, err = parseFloat(key, value, 0, math.Inf(1))
	case "alpha":
		p.Alpha, err = parseFloat(key, value, 0, math.Inf(1))
	case "gamma":
		p.Gamma, err = parseFloat(key, value, 0, math.Inf(1))
	case "max_bin":
		p.MaxBin, err = parseInt(key, value, 2)
	case "base_score":
		p.BaseScore, err = parseFloat(key, value, math.Inf(-1), math.Inf(1))
	case "seed":
		var v int
		v, err = parseInt(key, value, math.MinInt)
		p.Seed = int64(v)
	case "nthread":
		p.NThread, err = parseInt(key, value, 0)
	case "device":
		if value != "cpu" {
			return scigoErrors.NewValidationError(key, "only cpu is supported", value)
		}
		p.Device = value
	case "subsample":
		p.Subsample, err = parseFloat(key, value, math.SmallestNonzeroFloat64, 1)
	case "colsample_bytree":
		p.ColsampleTree, err = parseFloat(key, value, math.SmallestNonzeroFloat64, 1)
	case "max_delta_step":
		p.MaxDeltaStep, err = parseFloat(key, value, 0, math.Inf(1))
	case "eval_metric":
		for _, m := range strings.Split(value, ",") {
			m = strings.TrimSpace(m)
			if _, ok := metrics[m]; !ok {
				return scigoErrors.NewValidationError(key, "unknown metric", m)
			}
			if !contains(p.EvalMetrics, m) {
				p.EvalMetrics = append(p.EvalMetrics, m)
			}
		}
	}
	return err
}

// Map returns the canonical key/value form of p. Unset base_score is omitted.
func (p Params) Map() map[string]string {
	m := map[string]string{
		"booster":          p.Booster,
		"objective":        p.Objective,
		"num_class":        strconv.Itoa(p.NumClass),
		"max_depth":        strconv.Itoa(p.MaxDepth),
		"eta":              formatFloat(p.Eta),
		"min_child_weight": formatFloat(p.MinChildWeight),
		"lambda":           formatFloat(p.Lambda),
		"alpha":            formatFloat(p.Alpha),
		"gamma":            formatFloat(p.Gamma),
		"max_bin":          strconv.Itoa(p.MaxBin),
		"seed":             strconv.FormatInt(p.Seed, 10),
		"nthread":          strconv.Itoa(p.NThread),
		"device":           p.Device,
		"subsample":        formatFloat(p.Subsample),
		"colsample_bytree": formatFloat(p.ColsampleTree),
		"max_delta_step":   formatFloat(p.MaxDeltaStep),
	}
	if !math.IsNaN(p.BaseScore) {
		m["base_score"] = formatFloat(p.BaseScore)
	}
	if len(p.EvalMetrics) > 0 {
		m["eval_metric"] = strings.Join(p.EvalMetrics, ",")
	}
	return m
}

// ParamsFromMap applies m on top of the defaults in sorted key order.
func ParamsFromMap(m map[string]string) (Params, error) {
	p := DefaultParams()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := p.Set(k, m[k]); err != nil {
			return p, err
		}
	}
	return p, nil
}

func parseInt(key, value string, lo int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, scigoErrors.NewValidationError(key, "must be an integer", value)
	}
	if v < lo {
		return 0, scigoErrors.NewValidationError(key, "must be >= "+strconv.Itoa(lo), v)
	}
	return v, nil
}

func parseFloat(key, value string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) {
		return 0, scigoErrors.NewValidationError(key, "must be a number", value)
	}
	if v < lo || v > hi {
		return 0, scigoErrors.NewValidationError(key, "out of range", v)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
