// Package ledger is the crash-safe position book. Every mutation is
// persisted to disk before it is acknowledged, so a restart never loses a
// recorded fill.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// dateLayout keys the daily PnL bucket. Dates are UTC.
const dateLayout = "2006-01-02"

// DailyPnL accumulates realized profit for one UTC day. The bucket rolls
// over lazily: the first resolution on a new date resets it.
type DailyPnL struct {
	Date     string  `json:"date"`
	Realized float64 `json:"realized_pnl"`
	Resolved int     `json:"resolved_count"`
}

// Summary is a point-in-time view of the book for logging and monitoring.
type Summary struct {
	OpenPositions     int
	ResolvedPositions int
	TotalRealizedPnL  float64
	Daily             DailyPnL
	OpenCostBasis     float64 // across open positions, fees included
	GuaranteedProfit  float64 // across open positions
	UnmatchedExposure float64 // across open positions
}

// Ledger owns the position map and its on-disk JSON image. All methods are
// safe for concurrent use.
type Ledger struct {
	store  *fileStore
	logger *slog.Logger

	mu        sync.RWMutex
	positions map[string]*domain.Position
	daily     DailyPnL
	totalPnL  float64
}

// Open loads the ledger at path. A missing file starts a fresh book; an
// unreadable or unparseable file returns an error wrapping
// domain.ErrCorruptLedger, which callers must treat as fatal rather than
// silently discarding positions.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	l := &Ledger{
		store:     newFileStore(path),
		logger:    logger.With(slog.String("component", "ledger")),
		positions: make(map[string]*domain.Position),
	}

	img, err := l.store.load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		l.logger.Info("no ledger file, starting fresh", slog.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("ledger: %w: %v", domain.ErrCorruptLedger, err)
	default:
		if img.Positions != nil {
			l.positions = img.Positions
		}
		l.daily = img.Daily
		l.totalPnL = img.TotalRealizedPnL
		l.logger.Info("ledger loaded",
			slog.String("path", path),
			slog.Int("positions", len(l.positions)))
	}

	return l, nil
}

// RecordExecution folds the actual fills of one execution into the market's
// position and persists before returning. Only what the venue confirmed is
// recorded; requested sizes never enter the book. It returns the updated
// position snapshot.
func (l *Ledger) RecordExecution(exec domain.Execution) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[exec.MarketID]
	if !ok {
		pos = &domain.Position{
			MarketID: exec.MarketID,
			Question: exec.Question,
			OpenedAt: exec.StartedAt,
			Status:   domain.PositionOpen,
		}
		l.positions[exec.MarketID] = pos
	}

	applyFill := func(leg *domain.Leg, fill domain.Fill) {
		leg.Contracts += fill.Contracts
		leg.CostBasis += fill.Cost
		pos.TotalFees += fill.Fee
	}
	applyFill(&pos.Yes, exec.Yes.Fill)
	applyFill(&pos.No, exec.No.Fill)

	if err := l.persistLocked(); err != nil {
		return domain.Position{}, err
	}
	return *pos, nil
}

// ResolvePosition settles an open position and persists. It returns
// domain.ErrNotFound for unknown markets and domain.ErrAlreadyResolved when
// called twice, so settlement polling stays idempotent.
func (l *Ledger) ResolvePosition(marketID string, yesWon bool, resolvedAt time.Time) (domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[marketID]
	if !ok {
		return domain.Position{}, fmt.Errorf("ledger: market %s: %w", marketID, domain.ErrNotFound)
	}
	if pos.Status == domain.PositionResolved {
		return *pos, fmt.Errorf("ledger: market %s: %w", marketID, domain.ErrAlreadyResolved)
	}

	pnl := pos.SettlementPnL(yesWon)
	pos.Status = domain.PositionResolved
	pos.ResolvedAt = &resolvedAt
	pos.RealizedPnL = &pnl

	l.rollDailyLocked(resolvedAt)
	l.daily.Realized += pnl
	l.daily.Resolved++
	l.totalPnL += pnl

	if err := l.persistLocked(); err != nil {
		return domain.Position{}, err
	}
	return *pos, nil
}

// Position returns the position for a market, if any.
func (l *Ledger) Position(marketID string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[marketID]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns snapshots of every unresolved position, for the
// settlement tracker.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Position
	for _, pos := range l.positions {
		if pos.Status == domain.PositionOpen {
			out = append(out, *pos)
		}
	}
	return out
}

// Positions returns snapshots of every position in the book.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// Summarize computes the aggregate view used by the reporter.
func (l *Ledger) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{Daily: l.daily, TotalRealizedPnL: l.totalPnL}
	for _, pos := range l.positions {
		if pos.Status == domain.PositionResolved {
			s.ResolvedPositions++
			continue
		}
		s.OpenPositions++
		s.OpenCostBasis += pos.TotalCost()
		s.GuaranteedProfit += pos.GuaranteedProfit()
		s.UnmatchedExposure += pos.UnmatchedExposure()
	}
	return s
}

// Snapshot serializes the full ledger image, for the blob archiver.
func (l *Ledger) Snapshot() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.encode(l.imageLocked())
}

// Run re-persists the ledger at the configured interval until ctx is
// cancelled. Mutations already persist synchronously; the periodic flush
// restores the file if it was removed or mangled out-of-band.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.mu.Lock()
			err := l.persistLocked()
			l.mu.Unlock()
			if err != nil {
				l.logger.Error("periodic flush failed", slog.Any("error", err))
			}
		}
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// rollDailyLocked resets the daily bucket when the resolution lands on a new
// UTC date. Caller must hold the write lock.
func (l *Ledger) rollDailyLocked(at time.Time) {
	date := at.UTC().Format(dateLayout)
	if l.daily.Date != date {
		if l.daily.Date != "" {
			l.logger.Info("daily pnl rollover",
				slog.String("closed_date", l.daily.Date),
				slog.Float64("realized_pnl", l.daily.Realized),
				slog.Int("resolved", l.daily.Resolved))
		}
		l.daily = DailyPnL{Date: date}
	}
}

func (l *Ledger) imageLocked() fileImage {
	return fileImage{
		Positions:        l.positions,
		Daily:            l.daily,
		TotalRealizedPnL: l.totalPnL,
		SavedAt:          time.Now().UTC(),
	}
}

func (l *Ledger) persistLocked() error {
	if err := l.store.save(l.imageLocked()); err != nil {
		return fmt.Errorf("ledger: persist: %w", err)
	}
	return nil
}
