package smoke

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/mllite/booster"
	"github.com/YuminosukeSato/mllite/datasets"
	"github.com/YuminosukeSato/mllite/internal/config"
	"github.com/YuminosukeSato/mllite/partition"
	scigoErrors "github.com/YuminosukeSato/mllite/pkg/errors"
	"github.com/YuminosukeSato/mllite/pkg/log"
	"github.com/dustin/go-humanize"
)

// WritePartitions splits d into cfg.Parts partition files under dir and
// returns their paths. A cfg.ValidFraction share of the rows is flagged as
// validation rows.
func WritePartitions(dir string, d *datasets.Dataset, cfg config.PartitionConfig) ([]string, error) {
	logger := log.GetLoggerWithName("smoke.partitions")
	frames, err := partition.SplitRows(d.X, d.Target(), cfg.Parts, cfg.ValidFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, scigoErrors.Wrapf(err, "create %s", dir)
	}

	paths := make([]string, len(frames))
	var total int64
	for i, f := range frames {
		paths[i] = filepath.Join(dir, partition.FileName(i, cfg.Compress))
		if err := partition.WriteFile(paths[i], f, cfg.Compress); err != nil {
			return nil, err
		}
		if info, err := os.Stat(paths[i]); err == nil {
			total += info.Size()
		}
	}
	logger.Info("partitions written",
		log.PartitionsKey, len(paths),
		log.SamplesKey, d.Rows(),
		log.DataSizeKey, humanize.Bytes(uint64(total)),
		log.PathKey, dir,
		"compress", cfg.Compress,
	)
	return paths, nil
}

// RunPartitions reads the partition files of cfg.Dir, builds the training
// and validation matrices, trains on them and prints both shapes followed
// by one evaluation line per round.
func RunPartitions(ctx context.Context, w io.Writer, cfg config.PartitionConfig) error {
	readerCfg := partition.DefaultReaderConfig()
	readerCfg.Parallelism = cfg.Parallelism
	it, err := partition.ReadDir(ctx, cfg.Dir, readerCfg)
	if err != nil {
		return err
	}
	train, valid, err := partition.CreateDMatrixFromPartitions(ctx, it, cfg.FeatureColumns)
	if err != nil {
		return err
	}

	p := &printer{w: w}
	p.printf("TRAIN_MATRIX %d %d\n", train.NumRow(), train.NumCol())
	evals := []booster.EvalSet{{Data: train, Name: "train"}}
	if valid != nil {
		p.printf("VALID_MATRIX %d %d\n", valid.NumRow(), valid.NumCol())
		evals = append(evals, booster.EvalSet{Data: valid, Name: "valid"})
	}
	if p.err != nil {
		return p.err
	}

	bst, err := booster.Train(ctx, cfg.Params, train, cfg.Rounds, evals,
		booster.WithCallbacks(booster.PrintEvaluation(w, 1)))
	if err != nil {
		return err
	}
	p.printf("NUM_FEATURES = %d\n", bst.NumFeature())
	return p.err
}
