// Package config loads the YAML configuration of the mllite harnesses.
package config

import (
	"io"
	"os"
	"path/filepath"

	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Param is one booster key/value pair. Booster parameters are kept as an
// ordered list because they are applied in file order.
type Param struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// ClassifierConfig configures the iris classifier smoke run.
type ClassifierConfig struct {
	Params map[string]interface{} `yaml:"params"`
}

// RegressorConfig configures the regression smoke run on Friedman #1 data.
type RegressorConfig struct {
	Rows      int                    `yaml:"rows"`
	Noise     float64                `yaml:"noise"`
	Seed      uint64                 `yaml:"seed"`
	PrintRows int                    `yaml:"print_rows"`
	Params    map[string]interface{} `yaml:"params"`
}

// BoosterConfig configures the low level training loop. An empty URI
// trains on the dense toy multiclass buffer.
type BoosterConfig struct {
	URI        string  `yaml:"uri"`
	Rows       int     `yaml:"rows"`
	Cols       int     `yaml:"cols"`
	Iterations int     `yaml:"iterations"`
	Params     []Param `yaml:"params"`
}

// PartitionConfig configures the partition smoke run.
type PartitionConfig struct {
	Dir            string            `yaml:"dir"`
	FeatureColumns []string          `yaml:"feature_columns"`
	Parallelism    int               `yaml:"parallelism"`
	Rounds         int               `yaml:"rounds"`
	Params         map[string]string `yaml:"params"`
	// Split settings used when writing partitions from a dataset.
	Parts         int     `yaml:"parts"`
	ValidFraction float64 `yaml:"valid_fraction"`
	Seed          int64   `yaml:"seed"`
	Compress      bool    `yaml:"compress"`
}

// ReportConfig configures the feature importance chart.
type ReportConfig struct {
	Output       string  `yaml:"output"`
	WidthInches  float64 `yaml:"width_inches"`
	HeightInches float64 `yaml:"height_inches"`
}

// Config is the root configuration document.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Regressor  RegressorConfig  `yaml:"regressor"`
	Booster    BoosterConfig    `yaml:"booster"`
	Partitions PartitionConfig  `yaml:"partitions"`
	Report     ReportConfig     `yaml:"report"`
}

// Default returns the settings of the reference smoke runs.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Classifier: ClassifierConfig{Params: map[string]interface{}{
			"n_estimators":     1,
			"nthread":          1,
			"min_child_weight": 10,
			"max_depth":        3,
			"objective":        "multi:softmax",
			"num_class":        3,
			"seed":             1789,
			"max_bin":          10,
		}},
		Regressor: RegressorConfig{
			Rows:      442,
			Noise:     1.0,
			Seed:      1960,
			PrintRows: 12,
			Params: map[string]interface{}{
				"n_estimators":     1,
				"nthread":          1,
				"min_child_weight": 10,
				"max_depth":        6,
				"seed":             1960,
				"max_bin":          10,
			},
		},
		Booster: BoosterConfig{
			Rows:       1024,
			Cols:       12,
			Iterations: 200,
			Params: []Param{
				{"nthread", "1"},
				{"device", "cpu"},
				{"booster", "gbtree"},
				{"max_depth", "3"},
				{"max_bin", "16"},
				{"eta", "0.1"},
				{"num_class", "4"},
				{"objective", "multi:softmax"},
			},
		},
		Partitions: PartitionConfig{
			Parallelism: 4,
			Rounds:      10,
			Params: map[string]string{
				"max_depth": "3",
				"eta":       "0.3",
				"objective": "multi:softprob",
				"num_class": "3",
			},
			Parts:         4,
			ValidFraction: 0.2,
			Seed:          1789,
		},
		Report: ReportConfig{
			Output:       "importance.png",
			WidthInches:  6,
			HeightInches: 4,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values; an empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "config: read %s", path)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, scigoErrors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Parse decodes a YAML document into cfg and validates the result. Maps and
// lists present in the document replace the defaults as a whole.
func Parse(data []byte, cfg *Config) error {
	if len(data) > 0 {
		// An explicit params section replaces the defaults instead of being
		// merged into them.
		var probe struct {
			Classifier struct {
				Params yaml.Node `yaml:"params"`
			} `yaml:"classifier"`
			Regressor struct {
				Params yaml.Node `yaml:"params"`
			} `yaml:"regressor"`
			Partitions struct {
				Params yaml.Node `yaml:"params"`
			} `yaml:"partitions"`
		}
		if err := yaml.Unmarshal(data, &probe); err != nil {
			return scigoErrors.Wrap(err, "parse yaml")
		}
		if !probe.Classifier.Params.IsZero() {
			cfg.Classifier.Params = nil
		}
		if !probe.Regressor.Params.IsZero() {
			cfg.Regressor.Params = nil
		}
		if !probe.Partitions.Params.IsZero() {
			cfg.Partitions.Params = nil
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return scigoErrors.Wrap(err, "parse yaml")
		}
	}
	return cfg.Validate()
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	switch {
	case c.Regressor.Rows <= 0:
		return scigoErrors.NewValidationError("regressor.rows", "must be positive", c.Regressor.Rows)
	case c.Regressor.Noise < 0:
		return scigoErrors.NewValidationError("regressor.noise", "must be non-negative", c.Regressor.Noise)
	case c.Booster.Iterations < 0:
		return scigoErrors.NewValidationError("booster.iterations", "must be non-negative", c.Booster.Iterations)
	case c.Booster.URI == "" && (c.Booster.Rows <= 0 || c.Booster.Cols <= 0):
		return scigoErrors.NewValidationError("booster.rows", "toy buffer needs positive rows and cols", c.Booster.Rows)
	case c.Partitions.Rounds < 0:
		return scigoErrors.NewValidationError("partitions.rounds", "must be non-negative", c.Partitions.Rounds)
	case c.Partitions.ValidFraction < 0 || c.Partitions.ValidFraction >= 1:
		return scigoErrors.NewValidationError("partitions.valid_fraction", "must be in [0, 1)", c.Partitions.ValidFraction)
	}
	for _, p := range c.Booster.Params {
		if p.Key == "" {
			return scigoErrors.NewValidationError("booster.params", "empty key", p.Value)
		}
	}
	return nil
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return scigoErrors.Wrapf(err, "config: create directory for %s", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return scigoErrors.Wrap(err, "config: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return scigoErrors.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// Encode writes cfg as YAML to w.
func Encode(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return scigoErrors.Wrap(err, "config: encode")
	}
	return scigoErrors.Wrap(enc.Close(), "config: encode")
}
