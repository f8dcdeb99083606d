package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIME_ZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dailyTrader/internal/adapters/logger" // Import the logger package for LogLevel
	"dailyTrader/internal/domain"
	"dailyTrader/internal/filter"
	"dailyTrader/internal/lifecycle"
	"dailyTrader/internal/market"
	"dailyTrader/internal/risk"
	"dailyTrader/internal/sampler"
	"dailyTrader/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Venue
	PaperTrading bool    // Simulate fills instead of sending orders
	SlippageBps  float64 // Paper fills only

	// Storage
	DBPath        string
	SampleCSVPath string // Optional CSV copy of the decision log

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	Engine EngineConfig
}

// EngineConfig holds the parameters of the risk and lifecycle engine. It can
// be loaded from YAML.
type EngineConfig struct {
	Mode           domain.TradingMode `yaml:"mode"`
	Symbols        []string           `yaml:"symbols"`
	Interval       string             `yaml:"interval"`
	InitialCapital float64            `yaml:"initial_capital"`
	RiskPerTrade   float64            `yaml:"risk_per_trade"` // e.g., 0.02 for 2%
	TimeZone       string             `yaml:"time_zone"`      // Trading-day boundary, IANA name
	FilterEnabled  bool               `yaml:"filter_enabled"`

	Sizing    risk.SizingConfig `yaml:"sizing"`
	Limits    risk.Limits       `yaml:"limits"`
	Softening risk.Softening    `yaml:"softening"`
	Lifecycle lifecycle.Config  `yaml:"lifecycle"`
	Sampler   sampler.Config    `yaml:"sampler"`
	Market    market.Config     `yaml:"market"`
	Strategy  strategy.Config   `yaml:"strategy"`
	Filter    filter.Config     `yaml:"filter"`
}

// DefaultEngineConfig returns the standard engine parameters.
func DefaultEngineConfig() EngineConfig {
	strat := strategy.DefaultConfig()
	return EngineConfig{
		Mode:           domain.ModeLearning,
		Symbols:        []string{"BTCUSDT"},
		Interval:       "1m",
		InitialCapital: 10000,
		RiskPerTrade:   0.02,
		TimeZone:       "UTC",
		FilterEnabled:  true,
		Sizing: risk.SizingConfig{
			StopATRMultiple:     1.5,
			TakeProfitMultiple:  2,
			MaxExposureFraction: 0.5,
			QuantityPrecision:   3,
		},
		Limits: risk.Limits{
			MaxDailyLossFraction:     0.03,
			MaxDailyGainFraction:     0.05,
			MaxTradesPerDay:          50,
			MaxOpenPositions:         3,
			MaxTotalExposureFraction: 1.5,
		},
		Softening: strat.Softening,
		Lifecycle: lifecycle.DefaultConfig(),
		Sampler:   sampler.Config{NoSignalKeepEvery: 10},
		Market:    market.DefaultConfig(),
		Strategy:  strat,
		Filter: filter.Config{
			MaxATRPct:          5,
			BlockedRegimes:     []domain.MarketRegime{domain.RegimeChaotic},
			MaxConsecutiveSame: 3,
		},
	}
}

// Location resolves TimeZone.
func (c EngineConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// StrategyConfig returns the strategy parameters with the softening curve
// filled in.
func (c EngineConfig) StrategyConfig() strategy.Config {
	s := c.Strategy
	s.Softening = c.Softening
	return s
}

// SamplerConfig returns the sampler parameters for the configured mode.
func (c EngineConfig) SamplerConfig() sampler.Config {
	s := c.Sampler
	s.Mode = c.Mode
	return s
}

// Validate checks every engine parameter and reports all problems at once.
func (c EngineConfig) Validate() error {
	var errs []string

	if c.Mode != domain.ModeProduction && c.Mode != domain.ModeLearning {
		errs = append(errs, fmt.Sprintf("mode must be %q or %q, got %q", domain.ModeProduction, domain.ModeLearning, c.Mode))
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, "at least one symbol must be set")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "symbols cannot be blank")
			break
		}
	}
	if c.Interval == "" {
		errs = append(errs, "interval must be set")
	}
	if c.InitialCapital <= 0 {
		errs = append(errs, "initial capital must be positive")
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		errs = append(errs, "risk per trade must be between 0.0 and 1.0 (exclusive)")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid time zone %q: %v", c.TimeZone, err))
	}

	if _, err := risk.NewPositionSizer(c.Sizing); err != nil {
		errs = append(errs, err.Error())
	}
	l := c.Limits
	if l.MaxDailyLossFraction < 0 || l.MaxDailyLossFraction >= 1 {
		errs = append(errs, "max daily loss must be in [0, 1)")
	}
	if l.MaxDailyGainFraction < 0 {
		errs = append(errs, "max daily gain cannot be negative")
	}
	if l.MaxTradesPerDay < 0 || l.MaxOpenPositions < 0 {
		errs = append(errs, "trade and position counts cannot be negative")
	}
	if l.MaxTotalExposureFraction < 0 {
		errs = append(errs, "max total exposure cannot be negative")
	}
	if l.MaxDrawdownHalt < 0 || l.MaxDrawdownHalt >= 1 {
		errs = append(errs, "max drawdown halt must be in [0, 1)")
	}
	if c.Softening.Slope < 0 || c.Softening.MinMultiplier <= 0 || c.Softening.MinMultiplier > 1 {
		errs = append(errs, "softening must have slope >= 0 and min multiplier in (0, 1]")
	}
	if err := c.Lifecycle.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Sampler.NoSignalKeepEvery < 1 {
		errs = append(errs, "sampler no_signal keep ratio must be at least 1")
	}
	if err := c.Market.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Filter.MaxATRPct < 0 || c.Filter.MaxConsecutiveSame < 0 {
		errs = append(errs, "filter thresholds cannot be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("engine configuration invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadEngineFile overlays the YAML file at path onto base. Keys absent from
// the file keep their value in base.
func LoadEngineFile(path string, base EngineConfig) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read engine config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse engine config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEngineConfig returns the defaults, overlaid by path when it is set,
// and validates the result.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path != "" {
		var err error
		if cfg, err = LoadEngineFile(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// LoadConfig loads configuration from environment variables (.env file),
// on top of the optional YAML file named by ENGINE_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{Engine: DefaultEngineConfig()}
	var err error
	var errs []string // Collect validation errors

	if path := getEnv("ENGINE_CONFIG_FILE", ""); path != "" {
		if cfg.Engine, err = LoadEngineFile(path, cfg.Engine); err != nil {
			errs = append(errs, err.Error())
		}
	}

	// Venue
	cfg.PaperTrading = getEnvAsBool("PAPER_TRADING", true) // Default to paper for safety
	cfg.SlippageBps, err = getEnvAsFloatRequired("PAPER_SLIPPAGE_BPS", 2)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAPER_SLIPPAGE_BPS: %v", err))
	} else if cfg.SlippageBps < 0 {
		errs = append(errs, "PAPER_SLIPPAGE_BPS cannot be negative")
	}

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	if !cfg.PaperTrading {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when PAPER_TRADING is false")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when PAPER_TRADING is false")
		}
	}

	// Engine overrides
	e := &cfg.Engine
	if mode := getEnv("TRADING_MODE", ""); mode != "" {
		e.Mode = domain.TradingMode(strings.ToLower(mode))
	}
	if symbols := getEnv("SYMBOLS", ""); symbols != "" {
		e.Symbols = splitList(symbols)
	}
	e.Interval = getEnv("INTERVAL", e.Interval)
	e.TimeZone = getEnv("TIME_ZONE", e.TimeZone)

	floats := []struct {
		key string
		dst *float64
	}{
		{"INITIAL_CAPITAL", &e.InitialCapital},
		{"RISK_PER_TRADE", &e.RiskPerTrade},
		{"MAX_DAILY_LOSS", &e.Limits.MaxDailyLossFraction},
		{"MAX_DAILY_GAIN", &e.Limits.MaxDailyGainFraction},
		{"MAX_TOTAL_EXPOSURE", &e.Limits.MaxTotalExposureFraction},
		{"STOP_ATR_MULTIPLE", &e.Sizing.StopATRMultiple},
		{"TAKE_PROFIT_MULTIPLE", &e.Sizing.TakeProfitMultiple},
	}
	for _, f := range floats {
		if *f.dst, err = getEnvAsFloatRequired(f.key, *f.dst); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_OPEN_POSITIONS", &e.Limits.MaxOpenPositions},
		{"MAX_TRADES_PER_DAY", &e.Limits.MaxTradesPerDay},
		{"NO_SIGNAL_KEEP_EVERY", &e.Sampler.NoSignalKeepEvery},
	}
	for _, f := range ints {
		if *f.dst, err = getEnvAsIntRequired(f.key, *f.dst); err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", f.key, err))
		}
	}
	e.FilterEnabled = getEnvAsBool("FILTER_ENABLED", e.FilterEnabled)

	if verr := e.Validate(); verr != nil {
		errs = append(errs, verr.Error())
	}

	// Storage
	cfg.DBPath = getEnv("DB_PATH", "./data/engine.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	cfg.SampleCSVPath = getEnv("SAMPLE_CSV_PATH", "")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Connection Settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
