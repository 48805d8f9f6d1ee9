// Package service holds the supporting loops around the trading core:
// settlement tracking, periodic reporting, and operator alerts.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/ledger"
	"github.com/alanyoungcy/updownbot/internal/notify"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
)

// ResolutionSource reports a market's settlement state. The gamma client
// implements it.
type ResolutionSource interface {
	GetMarketResolution(ctx context.Context, marketID string) (polymarket.MarketResolution, error)
}

// ResolutionPublisher broadcasts settled positions to external consumers.
// The redis signal bus implements it.
type ResolutionPublisher interface {
	PublishResolution(ctx context.Context, pos domain.Position, yesWon bool) error
}

// SettlementTracker polls open positions for resolution and realizes their
// PnL in the ledger. Resolution is idempotent: a position already settled
// (by a previous poll or a concurrent path) is skipped.
type SettlementTracker struct {
	book     *ledger.Ledger
	source   ResolutionSource
	notifier *notify.Notifier
	bus      ResolutionPublisher
	poll     time.Duration
	logger   *slog.Logger
}

// NewSettlementTracker creates a SettlementTracker. notifier and bus may be
// nil.
func NewSettlementTracker(book *ledger.Ledger, source ResolutionSource, notifier *notify.Notifier, bus ResolutionPublisher, poll time.Duration, logger *slog.Logger) *SettlementTracker {
	if poll <= 0 {
		poll = time.Minute
	}
	return &SettlementTracker{
		book:     book,
		source:   source,
		notifier: notifier,
		bus:      bus,
		poll:     poll,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// Run polls until ctx is cancelled. It checks once immediately so positions
// carried over a restart settle without waiting a full interval.
func (t *SettlementTracker) Run(ctx context.Context) error {
	t.checkOpenPositions(ctx)

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.checkOpenPositions(ctx)
		}
	}
}

func (t *SettlementTracker) checkOpenPositions(ctx context.Context) {
	for _, pos := range t.book.OpenPositions() {
		res, err := t.source.GetMarketResolution(ctx, pos.MarketID)
		if err != nil {
			t.logger.Debug("resolution fetch failed",
				slog.String("market_id", pos.MarketID),
				slog.Any("error", err))
			continue
		}
		if !res.Resolved() {
			continue
		}

		resolved, err := t.book.ResolvePosition(pos.MarketID, res.YesWon, time.Now().UTC())
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				continue
			}
			t.logger.Error("resolve failed",
				slog.String("market_id", pos.MarketID),
				slog.Any("error", err))
			continue
		}

		pnl := 0.0
		if resolved.RealizedPnL != nil {
			pnl = *resolved.RealizedPnL
		}
		t.logger.Info("position resolved",
			slog.String("market_id", resolved.MarketID),
			slog.Bool("yes_won", res.YesWon),
			slog.Float64("realized_pnl", pnl))

		if t.notifier != nil {
			_ = t.notifier.Notify(ctx, "position_resolved",
				"Position resolved",
				resolutionMessage(resolved, res.YesWon, pnl))
		}
		if t.bus != nil {
			if err := t.bus.PublishResolution(ctx, resolved, res.YesWon); err != nil {
				t.logger.Warn("resolution publish failed",
					slog.String("market_id", resolved.MarketID),
					slog.Any("error", err))
			}
		}
	}
}
