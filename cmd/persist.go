package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/qc-reconcile/internal/reconcile"
	"github.com/sells-group/qc-reconcile/internal/resilience"
	"github.com/sells-group/qc-reconcile/internal/store"
)

// resultWriter persists reconcile results. Each store call waits on the
// limiter and is retried on transient failures.
type resultWriter struct {
	store    store.Store
	limiter  *rate.Limiter
	attempts int
}

// newResultWriter creates a writer. writesPerSecond <= 0 disables throttling.
func newResultWriter(st store.Store, writesPerSecond float64, attempts int) *resultWriter {
	limit := rate.Inf
	burst := 1
	if writesPerSecond > 0 {
		limit = rate.Limit(writesPerSecond)
		burst = max(1, int(writesPerSecond))
	}
	return &resultWriter{
		store:    st,
		limiter:  rate.NewLimiter(limit, burst),
		attempts: attempts,
	}
}

// Save replaces the document's mistakes and upserts its effort rows.
func (w *resultWriter) Save(ctx context.Context, res *reconcile.Result) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "save: rate limit")
	}
	_, err := resilience.DoVal(ctx, resilience.ForWrites(w.attempts, "replace_mistakes"),
		func(ctx context.Context) (int64, error) {
			return w.store.ReplaceMistakes(ctx, res.DocID, res.Mistakes)
		})
	if err != nil {
		return eris.Wrapf(err, "save: mistakes for %s", res.DocID)
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "save: rate limit")
	}
	_, err = resilience.DoVal(ctx, resilience.ForWrites(w.attempts, "upsert_effort"),
		func(ctx context.Context) (int64, error) {
			return w.store.UpsertEffort(ctx, res.Effort)
		})
	if err != nil {
		return eris.Wrapf(err, "save: effort for %s", res.DocID)
	}
	return nil
}
