// Package scheduler drives the market lifecycle for each configured symbol:
// discover the market covering the current 15-minute interval, preload the
// successor before the boundary, and retire expired markets only after the
// successor is live, so price coverage never gaps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// MarketSource discovers the market for a symbol and interval start.
// The gamma client implements it.
type MarketSource interface {
	MarketForInterval(ctx context.Context, symbol string, intervalStart time.Time) (domain.Market, error)
}

// Feed is the subscription surface the scheduler drives.
type Feed interface {
	Subscribe(m domain.Market) error
	Unsubscribe(m domain.Market) error
}

// Config carries the scheduler timing knobs.
type Config struct {
	// PreloadBuffer is how long before an interval ends that the successor
	// market is discovered and subscribed.
	PreloadBuffer time.Duration
	// DiscoveryGrace bounds how long discovery keeps retrying before the
	// interval is skipped.
	DiscoveryGrace time.Duration
	// RetryBackoff is the pause between discovery attempts.
	RetryBackoff time.Duration
	// CleanupLag delays unsubscription past the interval end so in-flight
	// executions against the old market settle first.
	CleanupLag time.Duration
}

// Scheduler runs one lifecycle loop per symbol against a shared registry
// and feed.
type Scheduler struct {
	source   MarketSource
	feed     Feed
	registry *Registry
	cfg      Config
	logger   *slog.Logger

	now func() time.Time // injected for tests
}

// New creates a Scheduler.
func New(source MarketSource, feed Feed, registry *Registry, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:   source,
		feed:     feed,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scheduler")),
		now:      time.Now,
	}
}

// RunSymbol drives the lifecycle for one symbol until ctx is cancelled.
// Call it once per configured symbol, typically one errgroup goroutine each.
func (s *Scheduler) RunSymbol(ctx context.Context, symbol string) error {
	log := s.logger.With(slog.String("symbol", symbol))

	start := domain.IntervalStartAt(s.now())
	current, err := s.discover(ctx, symbol, start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("startup discovery failed, waiting for next interval",
			slog.Time("interval_start", start),
			slog.Any("error", err))
	} else {
		s.activate(log, current)
	}

	for {
		nextStart := start.Add(domain.MarketInterval)

		// Preload the successor before the current interval ends.
		if !s.sleepUntil(ctx, nextStart.Add(-s.cfg.PreloadBuffer)) {
			return ctx.Err()
		}

		next, err := s.discover(ctx, symbol, nextStart)
		if err != nil && ctx.Err() == nil {
			// Preload failure is non-fatal: retry once the interval actually
			// begins, accepting a brief detection gap.
			log.Warn("preload discovery failed, retrying at interval start",
				slog.Time("interval_start", nextStart),
				slog.Any("error", err))
			if !s.sleepUntil(ctx, nextStart) {
				return ctx.Err()
			}
			next, err = s.discover(ctx, symbol, nextStart)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("discovery failed, interval will be skipped",
				slog.Time("interval_start", nextStart),
				slog.Any("error", err))
		} else {
			s.activate(log, next)
		}

		// Retire the expired market only after the successor subscribe was
		// attempted, and after the cleanup lag.
		if !s.sleepUntil(ctx, start.Add(domain.MarketInterval).Add(s.cfg.CleanupLag)) {
			return ctx.Err()
		}
		if current.ID != "" {
			s.retire(log, current)
		}

		current = next
		start = nextStart
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// discover resolves the market for an interval, retrying with a fixed
// backoff until it succeeds or the discovery grace budget is exhausted.
// Not-yet-published markets surface as domain.ErrNotFound and are retried
// the same as transport errors.
func (s *Scheduler) discover(ctx context.Context, symbol string, intervalStart time.Time) (domain.Market, error) {
	deadline := s.now().Add(s.cfg.DiscoveryGrace)
	slug := domain.Slug(symbol, intervalStart)

	var lastErr error
	for attempt := 1; ; attempt++ {
		m, err := s.source.MarketForInterval(ctx, symbol, intervalStart)
		if err == nil {
			s.logger.Info("market discovered",
				slog.String("symbol", symbol),
				slog.String("slug", slug),
				slog.String("market_id", m.ID),
				slog.Int("attempts", attempt))
			return m, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("discovery attempt failed",
				slog.String("slug", slug),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
		}

		if s.now().Add(s.cfg.RetryBackoff).After(deadline) {
			return domain.Market{}, fmt.Errorf("scheduler: discovery of %s exhausted grace: %w", slug, lastErr)
		}
		if !s.sleep(ctx, s.cfg.RetryBackoff) {
			return domain.Market{}, ctx.Err()
		}
	}
}

// activate registers and subscribes a discovered market. Both steps are
// idempotent by market ID.
func (s *Scheduler) activate(log *slog.Logger, m domain.Market) {
	fresh := s.registry.Add(m)
	if err := s.feed.Subscribe(m); err != nil {
		log.Error("subscribe failed",
			slog.String("market_id", m.ID),
			slog.Any("error", err))
	}
	if fresh {
		log.Info("market active",
			slog.String("market_id", m.ID),
			slog.String("slug", m.Slug),
			slog.Time("interval_end", m.IntervalEnd))
	}
}

// retire unsubscribes and deregisters an expired market.
func (s *Scheduler) retire(log *slog.Logger, m domain.Market) {
	if err := s.feed.Unsubscribe(m); err != nil {
		log.Warn("unsubscribe failed",
			slog.String("market_id", m.ID),
			slog.Any("error", err))
	}
	s.registry.Remove(m.ID)
	log.Info("market retired",
		slog.String("market_id", m.ID),
		slog.String("slug", m.Slug))
}

// sleepUntil waits until t (or returns immediately when t has passed); it
// reports false when ctx was cancelled first.
func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) bool {
	d := t.Sub(s.now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	return s.sleep(ctx, d)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
