package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies UPDOWN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing config file is
// not an error: the defaults plus environment overrides are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known UPDOWN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "UPDOWN_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.PrivateKey, "POLY_PRIVATE_KEY") // original bot alias
	setStr(&cfg.Wallet.FunderAddress, "UPDOWN_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.FunderAddress, "POLY_FUNDER") // original bot alias
	setStr(&cfg.Wallet.EncryptedKeyPath, "UPDOWN_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "UPDOWN_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "UPDOWN_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "UPDOWN_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "UPDOWN_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "UPDOWN_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "UPDOWN_POLYMARKET_SIGNATURE_TYPE")

	// ── Scheduler ──
	setStringSlice(&cfg.Scheduler.Symbols, "UPDOWN_SCHEDULER_SYMBOLS")
	setDuration(&cfg.Scheduler.PreloadBuffer, "UPDOWN_SCHEDULER_PRELOAD_BUFFER")
	setDuration(&cfg.Scheduler.DiscoveryGrace, "UPDOWN_SCHEDULER_DISCOVERY_GRACE")
	setDuration(&cfg.Scheduler.RetryBackoff, "UPDOWN_SCHEDULER_RETRY_BACKOFF")
	setDuration(&cfg.Scheduler.CleanupLag, "UPDOWN_SCHEDULER_CLEANUP_LAG")

	// ── Feed ──
	setDuration(&cfg.Feed.ReconnectBackoff, "UPDOWN_FEED_RECONNECT_BACKOFF")
	setDuration(&cfg.Feed.StaleAfter, "UPDOWN_FEED_STALE_AFTER")
	setDuration(&cfg.Feed.IdleTimeout, "UPDOWN_FEED_IDLE_TIMEOUT")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.Threshold, "UPDOWN_ARBITRAGE_THRESHOLD")
	setFloat64(&cfg.Arbitrage.DefaultTradeSize, "UPDOWN_ARBITRAGE_DEFAULT_TRADE_SIZE")
	setFloat64(&cfg.Arbitrage.MinTradeSize, "UPDOWN_ARBITRAGE_MIN_TRADE_SIZE")
	setFloat64(&cfg.Arbitrage.MaxTradeSize, "UPDOWN_ARBITRAGE_MAX_TRADE_SIZE")
	setDuration(&cfg.Arbitrage.OrderTimeout, "UPDOWN_ARBITRAGE_ORDER_TIMEOUT")

	// ── Ledger ──
	setStr(&cfg.Ledger.Path, "UPDOWN_LEDGER_PATH")
	setDuration(&cfg.Ledger.FlushInterval, "UPDOWN_LEDGER_FLUSH_INTERVAL")

	// ── Journal ──
	setBool(&cfg.Journal.Enabled, "UPDOWN_JOURNAL_ENABLED")
	setStr(&cfg.Journal.DSN, "UPDOWN_JOURNAL_DSN")
	setStr(&cfg.Journal.Host, "UPDOWN_JOURNAL_HOST")
	setInt(&cfg.Journal.Port, "UPDOWN_JOURNAL_PORT")
	setStr(&cfg.Journal.Database, "UPDOWN_JOURNAL_DATABASE")
	setStr(&cfg.Journal.User, "UPDOWN_JOURNAL_USER")
	setStr(&cfg.Journal.Password, "UPDOWN_JOURNAL_PASSWORD")
	setStr(&cfg.Journal.SSLMode, "UPDOWN_JOURNAL_SSLMODE")
	setInt(&cfg.Journal.PoolMaxConns, "UPDOWN_JOURNAL_POOL_MAX_CONNS")
	setInt(&cfg.Journal.PoolMinConns, "UPDOWN_JOURNAL_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "UPDOWN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "UPDOWN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "UPDOWN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "UPDOWN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "UPDOWN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "UPDOWN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "UPDOWN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "UPDOWN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "UPDOWN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "UPDOWN_S3_REGION")
	setStr(&cfg.S3.Bucket, "UPDOWN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "UPDOWN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "UPDOWN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "UPDOWN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "UPDOWN_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "UPDOWN_S3_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "UPDOWN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "UPDOWN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "UPDOWN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "UPDOWN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "UPDOWN_MODE")
	setStr(&cfg.LogLevel, "UPDOWN_LOG_LEVEL")

	// DRY_RUN=1 forces simulate mode regardless of other settings, matching
	// the behavior operators expect from the original deployment scripts.
	if v := os.Getenv("DRY_RUN"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Mode = "simulate"
	}
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
