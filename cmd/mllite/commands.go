package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/YuminosukeSato/mllite/datasets"
	"github.com/YuminosukeSato/mllite/internal/config"
	"github.com/YuminosukeSato/mllite/internal/report"
	"github.com/YuminosukeSato/mllite/internal/smoke"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/YuminosukeSato/mllite/sklearn/xgboost"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// app holds the state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mllite",
		Short:         "Gradient boosting smoke harnesses and partition tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.irisCmd(),
		a.regressionCmd(),
		a.trainCmd(),
		a.toyMulticlassCmd(),
		a.splitCmd(),
		a.partitionsCmd(),
		a.importanceCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads the configuration and installs the loggers. Logs go to
// stderr so stdout only carries harness output.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	if err := log.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
		return err
	}
	installWarningSink(cmd.ErrOrStderr())
	return nil
}

func (a *app) irisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "iris",
		Short: "Fit a classifier on iris and print options, tree dump and predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return smoke.RunClassifier(cmd.Context(), cmd.OutOrStdout(), a.cfg.Classifier)
		},
	}
}

func (a *app) regressionCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "regression",
		Short: "Fit a regressor on Friedman #1 data and print options, tree dump and predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Regressor
			if cmd.Flags().Changed("rows") {
				cfg.Rows = rows
			}
			return smoke.RunRegressor(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "number of generated rows")
	return cmd
}

// boosterFlags are the overrides shared by the booster loop commands.
type boosterFlags struct {
	iterations int
	params     []string
}

func (f *boosterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "boosting rounds")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "extra booster parameter key=value, applied after the configured ones")
}

func (f *boosterFlags) apply(cmd *cobra.Command, cfg *config.BoosterConfig) error {
	if cmd.Flags().Changed("iterations") {
		cfg.Iterations = f.iterations
	}
	params := append([]config.Param(nil), cfg.Params...)
	for _, kv := range f.params {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return scigoErrors.NewValidationError("param", "want key=value", kv)
		}
		params = append(params, config.Param{Key: key, Value: value})
	}
	cfg.Params = params
	return nil
}

func (a *app) trainCmd() *cobra.Command {
	var flags boosterFlags
	cmd := &cobra.Command{
		Use:   "train <uri>",
		Short: "Train a booster on a CSV matrix URI, printing the evaluation of every round",
		Long: `Train a booster on a matrix loaded from a URI such as
  data/iris.csv?format=csv&label_column=4&header=true
and print "EVAL_RESULT_AT_ITERATION <round> <eval>" after every round.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Booster
			cfg.URI = args[0]
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			return smoke.RunBoosterLoop(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) toyMulticlassCmd() *cobra.Command {
	var flags boosterFlags
	var rows, cols int
	cmd := &cobra.Command{
		Use:   "toy-multiclass",
		Short: "Train a multiclass booster on the dense toy buffer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Booster
			cfg.URI = ""
			if cmd.Flags().Changed("rows") {
				cfg.Rows = rows
			}
			if cmd.Flags().Changed("cols") {
				cfg.Cols = cols
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			return smoke.RunBoosterLoop(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&rows, "rows", 0, "toy buffer rows")
	cmd.Flags().IntVar(&cols, "cols", 0, "toy buffer columns")
	return cmd
}

func (a *app) splitCmd() *cobra.Command {
	var (
		data          string
		parts         int
		validFraction float64
		seed          int64
		compress      bool
	)
	cmd := &cobra.Command{
		Use:   "split <dir>",
		Short: "Write a dataset as partition files with a validation column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Partitions
			if cmd.Flags().Changed("parts") {
				cfg.Parts = parts
			}
			if cmd.Flags().Changed("valid-fraction") {
				cfg.ValidFraction = validFraction
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			if cmd.Flags().Changed("compress") {
				cfg.Compress = compress
			}

			var ds *datasets.Dataset
			var err error
			if data == "iris" {
				ds, err = datasets.LoadIris()
			} else {
				ds, err = datasets.LoadCSV(data)
			}
			if err != nil {
				return err
			}
			if ds.Y == nil {
				return scigoErrors.Newf("dataset %s has no label column", data)
			}
			paths, err := smoke.WritePartitions(args[0], ds, cfg)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p, fileSize(p))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "iris", `dataset: "iris" or a CSV URI with label_column`)
	cmd.Flags().IntVar(&parts, "parts", 0, "number of partitions")
	cmd.Flags().Float64Var(&validFraction, "valid-fraction", 0, "share of rows flagged as validation rows")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed of the validation split")
	cmd.Flags().BoolVar(&compress, "compress", false, "snappy-compress the partition files")
	return cmd
}

func (a *app) partitionsCmd() *cobra.Command {
	var (
		rounds   int
		features []string
	)
	cmd := &cobra.Command{
		Use:   "partitions <dir>",
		Short: "Build training and validation matrices from partition files and train on them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Partitions
			cfg.Dir = args[0]
			if cmd.Flags().Changed("rounds") {
				cfg.Rounds = rounds
			}
			if cmd.Flags().Changed("features") {
				cfg.FeatureColumns = features
			}
			return smoke.RunPartitions(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 0, "boosting rounds")
	cmd.Flags().StringSliceVar(&features, "features", nil, "scalar feature columns; enables the quantile path")
	return cmd
}

func (a *app) importanceCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "importance",
		Short: "Fit the regression harness model and chart its feature importances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := a.cfg.Regressor
			data, err := datasets.MakeFriedman1(rc.Rows, rc.Noise, rc.Seed)
			if err != nil {
				return err
			}
			reg := xgboost.NewXGBRegressor()
			if err := reg.SetParams(rc.Params); err != nil {
				return err
			}
			if err := reg.FitWithOptions(data.X, data.Y,
				xgboost.WithContext(cmd.Context()),
				xgboost.WithFeatureNames(data.FeatureNames),
			); err != nil {
				return err
			}
			scores, err := reg.FeatureImportances()
			if err != nil {
				return err
			}
			imp, err := report.SortImportances(data.FeatureNames, scores)
			if err != nil {
				return err
			}
			for _, v := range imp {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.6f\n", v.Feature, v.Score)
			}

			path := a.cfg.Report.Output
			if cmd.Flags().Changed("output") {
				path = output
			}
			rep := a.cfg.Report
			if err := report.SaveImportancePlot(path, "feature importance (gain)", imp, rep.WidthInches, rep.HeightInches); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, fileSize(path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "chart file; the extension selects the format")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Write(args[0], config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}, &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Encode(cmd.OutOrStdout(), a.cfg)
		},
	})
	return cmd
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}
	return humanize.Bytes(uint64(info.Size()))
}
