// Package config defines the top-level configuration for the up/down
// arbitrage bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by UPDOWN_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Feed       FeedConfig       `toml:"feed"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Journal    JournalConfig    `toml:"journal"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the trading wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
}

// SchedulerConfig holds interval scheduling parameters.
type SchedulerConfig struct {
	Symbols        []string `toml:"symbols"`
	PreloadBuffer  duration `toml:"preload_buffer"`
	DiscoveryGrace duration `toml:"discovery_grace"`
	RetryBackoff   duration `toml:"retry_backoff"`
	CleanupLag     duration `toml:"cleanup_lag"`
}

// FeedConfig holds price feed liveness parameters.
type FeedConfig struct {
	ReconnectBackoff duration `toml:"reconnect_backoff"`
	StaleAfter       duration `toml:"stale_after"`
	IdleTimeout      duration `toml:"idle_timeout"`
}

// ArbitrageConfig holds the combined-price trigger and sizing bounds.
type ArbitrageConfig struct {
	Threshold        float64  `toml:"threshold"`
	DefaultTradeSize float64  `toml:"default_trade_size"`
	MinTradeSize     float64  `toml:"min_trade_size"`
	MaxTradeSize     float64  `toml:"max_trade_size"`
	OrderTimeout     duration `toml:"order_timeout"`
}

// LedgerConfig holds position ledger persistence parameters.
type LedgerConfig struct {
	Path          string   `toml:"path"`
	FlushInterval duration `toml:"flush_interval"`
}

// JournalConfig holds the optional PostgreSQL fill journal parameters.
type JournalConfig struct {
	Enabled      bool   `toml:"enabled"`
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds the optional Redis monitoring surface parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the optional ledger snapshot archiver parameters.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "60s", "15m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values the bot ships with.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:       137,
			SignatureType: 2,
		},
		Scheduler: SchedulerConfig{
			Symbols:        []string{"btc", "eth", "sol", "xrp"},
			PreloadBuffer:  duration{60 * time.Second},
			DiscoveryGrace: duration{30 * time.Second},
			RetryBackoff:   duration{5 * time.Second},
			CleanupLag:     duration{5 * time.Second},
		},
		Feed: FeedConfig{
			ReconnectBackoff: duration{5 * time.Second},
			StaleAfter:       duration{10 * time.Second},
			IdleTimeout:      duration{120 * time.Second},
		},
		Arbitrage: ArbitrageConfig{
			Threshold:        0.995,
			DefaultTradeSize: 50.0,
			MinTradeSize:     1.0,
			MaxTradeSize:     50.0,
			OrderTimeout:     duration{10 * time.Second},
		},
		Ledger: LedgerConfig{
			Path:          "positions_updown.json",
			FlushInterval: duration{30 * time.Second},
		},
		Journal: JournalConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "updownbot",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "updownbot-data",
			ForcePathStyle:  true,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"execution", "execution_exposed", "execution_unknown", "position_resolved"},
		},
		Mode:     "simulate",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"simulate": true,
	"live":     true,
	"monitor":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: simulate, live, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — live execution needs a signing key.
	if strings.ToLower(c.Mode) == "live" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for live mode")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Scheduler
	if len(c.Scheduler.Symbols) == 0 {
		errs = append(errs, "scheduler: symbols must not be empty")
	}
	if c.Scheduler.PreloadBuffer.Duration <= 0 {
		errs = append(errs, "scheduler: preload_buffer must be > 0")
	}
	if c.Scheduler.PreloadBuffer.Duration >= 15*time.Minute {
		errs = append(errs, "scheduler: preload_buffer must be shorter than the market interval")
	}
	if c.Scheduler.RetryBackoff.Duration <= 0 {
		errs = append(errs, "scheduler: retry_backoff must be > 0")
	}

	// Feed
	if c.Feed.ReconnectBackoff.Duration <= 0 {
		errs = append(errs, "feed: reconnect_backoff must be > 0")
	}
	if c.Feed.StaleAfter.Duration <= 0 {
		errs = append(errs, "feed: stale_after must be > 0")
	}

	// Arbitrage
	if c.Arbitrage.Threshold <= 0 {
		errs = append(errs, "arbitrage: threshold must be > 0")
	}
	if c.Arbitrage.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("arbitrage: threshold must not exceed 1.0, got %v", c.Arbitrage.Threshold))
	}
	if c.Arbitrage.MinTradeSize <= 0 {
		errs = append(errs, "arbitrage: min_trade_size must be > 0")
	}
	if c.Arbitrage.MinTradeSize > c.Arbitrage.MaxTradeSize {
		errs = append(errs, fmt.Sprintf("arbitrage: min_trade_size (%v) must not exceed max_trade_size (%v)",
			c.Arbitrage.MinTradeSize, c.Arbitrage.MaxTradeSize))
	}
	if c.Arbitrage.DefaultTradeSize <= 0 {
		errs = append(errs, "arbitrage: default_trade_size must be > 0")
	}
	if c.Arbitrage.OrderTimeout.Duration <= 0 {
		errs = append(errs, "arbitrage: order_timeout must be > 0")
	}

	// Ledger
	if c.Ledger.Path == "" {
		errs = append(errs, "ledger: path must not be empty")
	}

	// Journal (optional)
	if c.Journal.Enabled {
		if strings.TrimSpace(c.Journal.DSN) == "" && c.Journal.Host == "" {
			errs = append(errs, "journal: host must not be empty (or set journal.dsn)")
		}
		if c.Journal.PoolMaxConns < 1 {
			errs = append(errs, "journal: pool_max_conns must be >= 1")
		}
	}

	// Redis (optional)
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// S3 (optional)
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
