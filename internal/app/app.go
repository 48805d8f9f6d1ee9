// Package app wires configuration into running components and drives the
// selected run mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/updownbot/internal/config"
)

// App is the top-level application. It owns the wired dependency graph for
// the lifetime of one Run call.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an App from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires the dependency graph and runs the configured mode until ctx is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wiring dependencies: %w", err)
	}
	defer cleanup()

	a.logger.Info("starting",
		slog.String("mode", mode),
		slog.Any("symbols", a.cfg.Scheduler.Symbols),
		slog.Float64("threshold", a.cfg.Arbitrage.Threshold))

	switch mode {
	case "live", "simulate":
		return a.runTrading(ctx, deps)
	case "monitor":
		return a.runMonitor(ctx, deps)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}
