package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runTrading runs the full pipeline: feed, per-symbol schedulers, detector,
// executor (inside the detector path), settlement, reporter, and the
// periodic ledger flush. Used by both live and simulate modes; the executor
// decides whether orders reach the venue.
func (a *App) runTrading(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Feed.Run(ctx) })
	g.Go(func() error { return deps.Detector.Run(ctx, deps.Feed.Ticks()) })

	for _, symbol := range a.cfg.Scheduler.Symbols {
		g.Go(func() error { return deps.Scheduler.RunSymbol(ctx, symbol) })
	}

	g.Go(func() error { return deps.Settlement.Run(ctx) })
	g.Go(func() error { return deps.Reporter.Run(ctx) })
	g.Go(func() error { return deps.Ledger.Run(ctx, a.cfg.Ledger.FlushInterval.Duration) })

	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}

	return g.Wait()
}

// runMonitor follows markets and logs opportunities without ever trading:
// the detector runs with no executor, and the ledger is never written.
func (a *App) runMonitor(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return deps.Feed.Run(ctx) })
	g.Go(func() error { return deps.Detector.Run(ctx, deps.Feed.Ticks()) })

	for _, symbol := range a.cfg.Scheduler.Symbols {
		g.Go(func() error { return deps.Scheduler.RunSymbol(ctx, symbol) })
	}

	g.Go(func() error { return deps.Reporter.Run(ctx) })

	return g.Wait()
}
