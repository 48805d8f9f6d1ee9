package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/updownbot/internal/feed"
	"github.com/alanyoungcy/updownbot/internal/ledger"
	"github.com/alanyoungcy/updownbot/internal/scheduler"
)

// Reporter periodically logs a one-line status of the whole bot: active
// markets, live quote count, open positions, and realized PnL.
type Reporter struct {
	book     *ledger.Ledger
	registry *scheduler.Registry
	board    *feed.Board
	interval time.Duration
	logger   *slog.Logger
}

// NewReporter creates a Reporter.
func NewReporter(book *ledger.Ledger, registry *scheduler.Registry, board *feed.Board, interval time.Duration, logger *slog.Logger) *Reporter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reporter{
		book:     book,
		registry: registry,
		board:    board,
		interval: interval,
		logger:   logger.With(slog.String("component", "reporter")),
	}
}

// Run logs the status line every interval until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	summary := r.book.Summarize()

	live := 0
	now := time.Now()
	for _, q := range r.board.Snapshot() {
		if q.Usable(now, time.Minute) {
			live++
		}
	}

	r.logger.Info("status",
		slog.Int("active_markets", r.registry.Len()),
		slog.Int("live_quotes", live),
		slog.Int("open_positions", summary.OpenPositions),
		slog.Int("resolved_positions", summary.ResolvedPositions),
		slog.Float64("open_cost_basis", summary.OpenCostBasis),
		slog.Float64("guaranteed_profit_open", summary.GuaranteedProfit),
		slog.Float64("unmatched_exposure", summary.UnmatchedExposure),
		slog.Float64("daily_pnl", summary.Daily.Realized),
		slog.Float64("total_pnl", summary.TotalRealizedPnL))
}
