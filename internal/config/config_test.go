package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestDefaultsValues(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "simulate", cfg.Mode)
	assert.Equal(t, 0.995, cfg.Arbitrage.Threshold)
	assert.Equal(t, []string{"btc", "eth", "sol", "xrp"}, cfg.Scheduler.Symbols)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.PreloadBuffer.Duration)
	assert.Equal(t, 137, cfg.Polymarket.ChainID)
}

func TestValidateLiveModeRequiresKey(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "live"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key")

	cfg.Wallet.PrivateKey = "deadbeef"
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Arbitrage.Threshold = 1.2
	cfg.Scheduler.Symbols = nil
	cfg.Ledger.Path = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "threshold")
	assert.Contains(t, err.Error(), "symbols")
	assert.Contains(t, err.Error(), "ledger")
}

func TestValidatePreloadBufferBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Scheduler.PreloadBuffer = duration{16 * time.Minute}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preload_buffer")
}

func TestValidateTradeSizeOrdering(t *testing.T) {
	cfg := Defaults()
	cfg.Arbitrage.MinTradeSize = 100
	cfg.Arbitrage.MaxTradeSize = 50
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_trade_size")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "monitor"

[arbitrage]
threshold = 0.99

[scheduler]
symbols = ["btc"]
preload_buffer = "90s"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 0.99, cfg.Arbitrage.Threshold)
	assert.Equal(t, []string{"btc"}, cfg.Scheduler.Symbols)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.PreloadBuffer.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "simulate", cfg.Mode)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("UPDOWN_MODE", "monitor")
	t.Setenv("UPDOWN_ARBITRAGE_THRESHOLD", "0.98")
	t.Setenv("UPDOWN_SCHEDULER_SYMBOLS", "btc, eth")
	t.Setenv("UPDOWN_FEED_STALE_AFTER", "3s")
	t.Setenv("UPDOWN_REDIS_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 0.98, cfg.Arbitrage.Threshold)
	assert.Equal(t, []string{"btc", "eth"}, cfg.Scheduler.Symbols)
	assert.Equal(t, 3*time.Second, cfg.Feed.StaleAfter.Duration)
	assert.True(t, cfg.Redis.Enabled)
}

func TestPolyAliasEnvVars(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "cafebabe")
	t.Setenv("POLY_FUNDER", "0x123")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "cafebabe", cfg.Wallet.PrivateKey)
	assert.Equal(t, "0x123", cfg.Wallet.FunderAddress)
}

func TestDryRunForcesSimulate(t *testing.T) {
	t.Setenv("UPDOWN_MODE", "live")
	t.Setenv("DRY_RUN", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "simulate", cfg.Mode)
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("15m")))
	assert.Equal(t, 15*time.Minute, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "15m0s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
