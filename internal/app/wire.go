package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/updownbot/internal/arbitrage"
	s3blob "github.com/alanyoungcy/updownbot/internal/blob/s3"
	"github.com/alanyoungcy/updownbot/internal/cache/redis"
	"github.com/alanyoungcy/updownbot/internal/config"
	"github.com/alanyoungcy/updownbot/internal/crypto"
	"github.com/alanyoungcy/updownbot/internal/feed"
	"github.com/alanyoungcy/updownbot/internal/ledger"
	"github.com/alanyoungcy/updownbot/internal/notify"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
	"github.com/alanyoungcy/updownbot/internal/scheduler"
	"github.com/alanyoungcy/updownbot/internal/service"
	"github.com/alanyoungcy/updownbot/internal/store/postgres"
)

// Dependencies bundles every component the run modes need. Optional
// integrations (journal, redis, object storage) are nil when disabled.
type Dependencies struct {
	Ledger     *ledger.Ledger
	Board      *feed.Board
	Feed       *feed.WSFeed
	Registry   *scheduler.Registry
	Scheduler  *scheduler.Scheduler
	Executor   *arbitrage.Executor // nil in monitor mode
	Detector   *arbitrage.Detector
	Settlement *service.SettlementTracker
	Reporter   *service.Reporter
	Notifier   *notify.Notifier
	Archiver   *s3blob.LedgerArchiver // nil unless S3 is enabled
}

// Wire builds the full dependency graph from configuration. The returned
// cleanup function closes every external connection in reverse order of
// construction and is safe to call after a partial failure.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	notifier := buildNotifier(cfg, logger)

	book, err := ledger.Open(cfg.Ledger.Path, logger)
	if err != nil {
		return fail(err)
	}

	// Optional Redis: quote mirror and pub/sub event bus.
	var (
		quoteSink feed.QuoteSink
		signalBus *redis.SignalBus
	)
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("closing redis", slog.Any("error", err))
			}
		})
		quoteSink = redis.NewQuoteCache(rdb)
		signalBus = redis.NewSignalBus(rdb)
	}

	board := feed.NewBoard()
	ws := polymarket.NewWSClient(
		cfg.Polymarket.WsHost,
		cfg.Feed.ReconnectBackoff.Duration,
		cfg.Feed.IdleTimeout.Duration,
		logger,
	)
	wsFeed := feed.NewWSFeed(ws, board, quoteSink, logger)

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	registry := scheduler.NewRegistry()
	sched := scheduler.New(gamma, wsFeed, registry, scheduler.Config{
		PreloadBuffer:  cfg.Scheduler.PreloadBuffer.Duration,
		DiscoveryGrace: cfg.Scheduler.DiscoveryGrace.Duration,
		RetryBackoff:   cfg.Scheduler.RetryBackoff.Duration,
		CleanupLag:     cfg.Scheduler.CleanupLag.Duration,
	}, logger)

	var executor *arbitrage.Executor
	if mode != "monitor" {
		executor, err = buildExecutor(ctx, cfg, mode, book, logger)
		if err != nil {
			return fail(err)
		}

		if cfg.Journal.Enabled {
			pg, err := postgres.New(ctx, postgres.ClientConfig{
				DSN:      cfg.Journal.DSN,
				Host:     cfg.Journal.Host,
				Port:     cfg.Journal.Port,
				Database: cfg.Journal.Database,
				User:     cfg.Journal.User,
				Password: cfg.Journal.Password,
				SSLMode:  cfg.Journal.SSLMode,
				MaxConns: cfg.Journal.PoolMaxConns,
				MinConns: cfg.Journal.PoolMinConns,
			})
			if err != nil {
				return fail(err)
			}
			closers = append(closers, pg.Close)
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(err)
			}
			executor.AddRecorder(postgres.NewExecutionStore(pg.Pool()))
		}
		if signalBus != nil {
			executor.AddRecorder(signalBus)
		}
		executor.AddRecorder(service.NewExecutionAlerter(notifier))
	}

	detector := arbitrage.NewDetector(
		board, registry, executor,
		cfg.Arbitrage.Threshold,
		cfg.Feed.StaleAfter.Duration,
		logger,
	)

	// The typed-nil guard matters: assigning a nil *redis.SignalBus straight
	// into the interface would make the tracker call through it.
	var resolutionBus service.ResolutionPublisher
	if signalBus != nil {
		resolutionBus = signalBus
	}
	settlement := service.NewSettlementTracker(book, gamma, notifier, resolutionBus, 0, logger)
	reporter := service.NewReporter(book, registry, board, 0, logger)

	var archiver *s3blob.LedgerArchiver
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(err)
		}
		if err := s3c.Health(ctx); err != nil {
			return fail(err)
		}
		archiver = s3blob.NewLedgerArchiver(
			s3blob.NewWriter(s3c), book,
			cfg.S3.ArchiveInterval.Duration, logger,
		)
	}

	return &Dependencies{
		Ledger:     book,
		Board:      board,
		Feed:       wsFeed,
		Registry:   registry,
		Scheduler:  sched,
		Executor:   executor,
		Detector:   detector,
		Settlement: settlement,
		Reporter:   reporter,
		Notifier:   notifier,
		Archiver:   archiver,
	}, cleanup, nil
}

// buildExecutor constructs the dual-leg executor. Live mode loads the wallet
// key, builds the signing CLOB client, and derives HMAC credentials up front
// so credential problems surface at startup rather than on the first
// opportunity. Simulate mode never places orders, so no client is built.
func buildExecutor(ctx context.Context, cfg *config.Config, mode string, book *ledger.Ledger, logger *slog.Logger) (*arbitrage.Executor, error) {
	var placer arbitrage.OrderPlacer
	if mode == "live" {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, err
		}
		signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID)
		if err != nil {
			return nil, err
		}
		clob := polymarket.NewClobClient(
			cfg.Polymarket.ClobHost, signer,
			cfg.Wallet.FunderAddress, cfg.Polymarket.SignatureType,
		)
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return nil, fmt.Errorf("app: deriving clob api key: %w", err)
		}
		logger.Info("clob credentials derived", slog.String("address", signer.Address().Hex()))
		placer = clob
	}

	return arbitrage.NewExecutor(placer, book, arbitrage.ExecutorConfig{
		DefaultTradeSize: cfg.Arbitrage.DefaultTradeSize,
		MinTradeSize:     cfg.Arbitrage.MinTradeSize,
		MaxTradeSize:     cfg.Arbitrage.MaxTradeSize,
		OrderTimeout:     cfg.Arbitrage.OrderTimeout.Duration,
		Simulate:         mode != "live",
	}, logger), nil
}

// buildNotifier assembles the configured alert senders. With no senders
// configured the notifier is a no-op.
func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, logger)
}
