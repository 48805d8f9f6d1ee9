// Package arbitrage detects underpriced YES/NO ask pairs and executes both
// legs as immediate-or-cancel orders.
package arbitrage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/feed"
	"github.com/alanyoungcy/updownbot/internal/scheduler"
)

// Detector re-evaluates a market whenever one of its quotes ticks. When the
// combined best asks price a guaranteed payout below the threshold, it hands
// the market to the executor.
type Detector struct {
	board      *feed.Board
	registry   *scheduler.Registry
	executor   *Executor
	threshold  float64
	staleAfter time.Duration
	logger     *slog.Logger

	now func() time.Time // injected for tests
	wg  sync.WaitGroup   // tracks spawned executions for drain on shutdown
}

// NewDetector creates a Detector.
func NewDetector(board *feed.Board, registry *scheduler.Registry, executor *Executor, threshold float64, staleAfter time.Duration, logger *slog.Logger) *Detector {
	return &Detector{
		board:      board,
		registry:   registry,
		executor:   executor,
		threshold:  threshold,
		staleAfter: staleAfter,
		logger:     logger.With(slog.String("component", "detector")),
		now:        time.Now,
	}
}

// Run consumes quote ticks until ctx is cancelled. Executions run in their
// own goroutine so a slow venue round-trip never stalls scanning; the
// executor's per-market guard prevents duplicate concurrent attempts. On
// shutdown Run waits for in-flight executions to record before returning.
func (d *Detector) Run(ctx context.Context, ticks <-chan feed.Tick) error {
	d.logger.Info("detector started",
		slog.Float64("threshold", d.threshold),
		slog.Duration("stale_after", d.staleAfter))
	defer d.logger.Info("detector stopped")
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			market, ok := d.registry.ByToken(tick.TokenID)
			if !ok {
				// Late tick for a retired market.
				continue
			}
			if yes, no, found := d.Evaluate(market); found && d.executor != nil {
				d.wg.Add(1)
				go func() {
					defer d.wg.Done()
					d.executor.TryExecute(ctx, market, yes, no)
				}()
			}
		}
	}
}

// Evaluate checks one market for an opportunity: both quotes must be fresh
// and usable, and the combined best asks must price below the threshold.
func (d *Detector) Evaluate(m domain.Market) (yes, no domain.PriceQuote, found bool) {
	now := d.now()
	if m.Expired(now) {
		return yes, no, false
	}

	yes, no, ok := d.board.Pair(m.YesTokenID, m.NoTokenID)
	if !ok || !yes.Usable(now, d.staleAfter) || !no.Usable(now, d.staleAfter) {
		return yes, no, false
	}

	combined := yes.BestAsk + no.BestAsk
	if combined >= d.threshold {
		return yes, no, false
	}

	d.logger.Info("opportunity",
		slog.String("market_id", m.ID),
		slog.String("slug", m.Slug),
		slog.Float64("yes_ask", yes.BestAsk),
		slog.Float64("no_ask", no.BestAsk),
		slog.Float64("combined", combined))
	return yes, no, true
}
