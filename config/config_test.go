package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/internal/adapters/logger"
	"dailyTrader/internal/domain"
)

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENGINE_CONFIG_FILE", "PAPER_TRADING", "PAPER_SLIPPAGE_BPS", "BINANCE_API_KEY", "BINANCE_API_SECRET",
		"IS_TESTNET", "TRADING_MODE", "SYMBOLS", "INTERVAL", "TIME_ZONE", "INITIAL_CAPITAL", "RISK_PER_TRADE",
		"MAX_DAILY_LOSS", "MAX_DAILY_GAIN", "MAX_TOTAL_EXPOSURE", "STOP_ATR_MULTIPLE", "TAKE_PROFIT_MULTIPLE",
		"MAX_OPEN_POSITIONS", "MAX_TRADES_PER_DAY", "NO_SIGNAL_KEEP_EVERY", "FILTER_ENABLED", "DB_PATH",
		"SAMPLE_CSV_PATH", "LOG_LEVEL", "RECONNECT_DELAY_SECONDS", "MAX_RECONNECT_ATTEMPTS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.PaperTrading)
	assert.True(t, cfg.IsTestnet)
	assert.Equal(t, "./data/engine.db", cfg.DBPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)

	e := cfg.Engine
	assert.Equal(t, domain.ModeLearning, e.Mode)
	assert.Equal(t, []string{"BTCUSDT"}, e.Symbols)
	assert.Equal(t, 10000.0, e.InitialCapital)
	assert.Equal(t, 0.02, e.RiskPerTrade)
	assert.Equal(t, 3, e.Limits.MaxOpenPositions)
	assert.Equal(t, 0.03, e.Limits.MaxDailyLossFraction)
	assert.Equal(t, 0.05, e.Limits.MaxDailyGainFraction)
	assert.Equal(t, 50, e.Limits.MaxTradesPerDay)
	assert.Equal(t, 1.5, e.Sizing.StopATRMultiple)
	assert.Equal(t, 2.0, e.Sizing.TakeProfitMultiple)
	assert.Equal(t, 0.5, e.Sizing.MaxExposureFraction)
	assert.Equal(t, 240*time.Minute, e.Lifecycle.MaxHoldDuration)
	assert.Equal(t, 10, e.Sampler.NoSignalKeepEvery)
	assert.Equal(t, domain.ModeLearning, e.SamplerConfig().Mode)
	assert.Equal(t, e.Softening, e.StrategyConfig().Softening)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: production
symbols: [ETHUSDT, SOLUSDT]
time_zone: Europe/Berlin
limits:
  max_open_positions: 5
  max_drawdown_halt: 0.2
lifecycle:
  max_hold_duration: 90m
sampler:
  no_signal_keep_every: 4
`), 0o644))
	t.Setenv("ENGINE_CONFIG_FILE", path)
	t.Setenv("MAX_OPEN_POSITIONS", "2")
	t.Setenv("SYMBOLS", "btcusdt, ethusdt")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	e := cfg.Engine
	assert.Equal(t, domain.ModeProduction, e.Mode)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, e.Symbols, "env wins over the file")
	assert.Equal(t, 2, e.Limits.MaxOpenPositions, "env wins over the file")
	assert.Equal(t, 0.2, e.Limits.MaxDrawdownHalt)
	assert.Equal(t, 0.03, e.Limits.MaxDailyLossFraction, "keys missing from the file keep defaults")
	assert.Equal(t, 90*time.Minute, e.Lifecycle.MaxHoldDuration)
	assert.Equal(t, 1.5, e.Lifecycle.TrailArmR)
	assert.Equal(t, 4, e.Sampler.NoSignalKeepEvery)

	loc, err := e.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAPER_TRADING", "false")
	t.Setenv("RISK_PER_TRADE", "abc")
	t.Setenv("MAX_OPEN_POSITIONS", "-1")

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	msg := err.Error()
	assert.Contains(t, msg, "BINANCE_API_KEY must be set")
	assert.Contains(t, msg, "BINANCE_API_SECRET must be set")
	assert.Contains(t, msg, "invalid RISK_PER_TRADE")
	assert.Contains(t, msg, "trade and position counts cannot be negative")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read engine config")
}

func TestEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *EngineConfig)
		wantErr string
	}{
		{"defaults", func(c *EngineConfig) {}, ""},
		{"unknown mode", func(c *EngineConfig) { c.Mode = "yolo" }, "mode must be"},
		{"no symbols", func(c *EngineConfig) { c.Symbols = nil }, "at least one symbol"},
		{"risk per trade too large", func(c *EngineConfig) { c.RiskPerTrade = 1 }, "risk per trade"},
		{"bad time zone", func(c *EngineConfig) { c.TimeZone = "Mars/Olympus" }, "invalid time zone"},
		{"zero stop multiple", func(c *EngineConfig) { c.Sizing.StopATRMultiple = 0 }, "stop ATR multiple"},
		{"softening floor", func(c *EngineConfig) { c.Softening.MinMultiplier = 0 }, "softening"},
		{"keep ratio", func(c *EngineConfig) { c.Sampler.NoSignalKeepEvery = 0 }, "keep ratio"},
		{"lifecycle", func(c *EngineConfig) { c.Lifecycle.RestoreStopFraction = 0 }, "restore stop fraction"},
		{"no time stop", func(c *EngineConfig) { c.Lifecycle.MaxHoldDuration = 0 }, "max hold duration must be positive"},
		{"market periods", func(c *EngineConfig) { c.Market.SlowPeriod = 1 }, "EMA periods"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultEngineConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEngineConfig_NoPathUsesDefaults(t *testing.T) {
	cfg, err := LoadEngineConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig().Limits, cfg.Limits)
}

func TestLoadEngineConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadEngineConfig(filepath.Join("..", "configs", "engine.example.yaml"))
	require.NoError(t, err)

	want := DefaultEngineConfig()
	want.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	assert.Equal(t, want, cfg, "the example file spells out the defaults")
}
