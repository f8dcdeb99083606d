package strategy

import (
	"fmt"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/risk"
)

// Config holds parameters shared by the strategies.
type Config struct {
	RSIOverbought float64 `yaml:"rsi_overbought"` // e.g., 70.0
	RSIOversold   float64 `yaml:"rsi_oversold"`   // e.g., 30.0
	MinStrength   float64 `yaml:"min_strength"`   // Production only, e.g., 0.3
	StopLossPct   float64 `yaml:"stop_loss_pct"`  // Explicit stop as a fraction of price; 0 derives it from ATR

	// Learning mode only
	Softening risk.Softening `yaml:"-"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		RSIOverbought: 70,
		RSIOversold:   30,
		MinStrength:   0.3,
		Softening:     risk.Softening{Slope: 5, MinMultiplier: 0.25},
	}
}

func (c Config) validate() error {
	if c.RSIOversold <= 0 || c.RSIOverbought >= 100 || c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("RSI thresholds must satisfy 0 < oversold (%.1f) < overbought (%.1f) < 100", c.RSIOversold, c.RSIOverbought)
	}
	if c.StopLossPct < 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("stop loss pct must be in [0, 1)")
	}
	return nil
}

// New returns the strategy implementing mode.
func New(mode domain.TradingMode, cfg Config, requiredPoints int, logger ports.Logger) (ports.Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if requiredPoints <= 0 {
		return nil, fmt.Errorf("required data points must be positive")
	}
	switch mode {
	case domain.ModeProduction:
		return &ProductionStrategy{cfg: cfg, required: requiredPoints, logger: logger}, nil
	case domain.ModeLearning:
		if cfg.Softening.MinMultiplier <= 0 || cfg.Softening.MinMultiplier > 1 || cfg.Softening.Slope < 0 {
			return nil, fmt.Errorf("softening must have slope >= 0 and min multiplier in (0, 1]")
		}
		return &LearningStrategy{cfg: cfg, required: requiredPoints, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown trading mode %q", mode)
	}
}

func explicitStop(cfg Config, side domain.OrderSide, price float64) float64 {
	if cfg.StopLossPct <= 0 {
		return 0
	}
	return price * (1 - cfg.StopLossPct*side.Sign())
}
