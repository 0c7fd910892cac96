package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/qc-reconcile/internal/bundle"
	"github.com/sells-group/qc-reconcile/internal/reconcile"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Reconcile every bundle in a directory and persist the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		eng, err := newEngine(cfg.Engine)
		if err != nil {
			return err
		}

		paths, err := bundle.List(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w := newResultWriter(st, cfg.Batch.WritesPerSecond, cfg.Batch.RetryAttempts)

		_, err = processBatch(ctx, paths, batchLimit, cfg.Batch.MaxConcurrentDocuments,
			func(ctx context.Context, path string) (*reconcile.Result, error) {
				in, err := bundle.Load(path)
				if err != nil {
					return nil, err
				}
				res, err := eng.Run(in)
				if err != nil {
					return nil, err
				}
				if err := w.Save(ctx, res); err != nil {
					return nil, err
				}
				return res, nil
			})
		return err
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of bundles to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

// documentFunc reconciles and persists the bundle at path.
type documentFunc func(ctx context.Context, path string) (*reconcile.Result, error)

type batchSummary struct {
	Succeeded int64
	Failed    int64
	Mistakes  int64
}

// processBatch applies limit, then processes bundles concurrently. A failed
// document is logged and counted without aborting the batch.
func processBatch(ctx context.Context, paths []string, limit, concurrency int, process documentFunc) (batchSummary, error) {
	if len(paths) == 0 {
		zap.L().Info("no bundles found")
		return batchSummary{}, nil
	}

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("bundles", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed, mistakes atomic.Int64

	for _, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("bundle", path))

			if gctx.Err() != nil {
				failed.Add(1)
				return nil
			}

			res, err := process(gctx, path)
			if err != nil {
				failed.Add(1)
				log.Error("document failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			mistakes.Add(int64(len(res.Mistakes)))
			log.Info("document reconciled",
				zap.String("doc_id", res.DocID),
				zap.Int("steps", len(res.Steps)),
				zap.Int("mistakes", len(res.Mistakes)),
				zap.Int("effort_records", len(res.Effort)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batchSummary{}, eris.Wrap(err, "batch processing")
	}

	sum := batchSummary{
		Succeeded: succeeded.Load(),
		Failed:    failed.Load(),
		Mistakes:  mistakes.Load(),
	}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("failed", sum.Failed),
		zap.Int64("mistakes", sum.Mistakes),
	)
	return sum, nil
}
