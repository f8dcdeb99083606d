package market

import (
	"fmt"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/strategy/indicators"
)

// Config holds indicator periods used to build snapshots.
type Config struct {
	FastPeriod       int `yaml:"fast_period"`
	SlowPeriod       int `yaml:"slow_period"`
	RSIPeriod        int `yaml:"rsi_period"`
	ATRPeriod        int `yaml:"atr_period"`
	MACDFast         int `yaml:"macd_fast"`
	MACDSlow         int `yaml:"macd_slow"`
	MACDSignal       int `yaml:"macd_signal"`
	VolumePeriod     int `yaml:"volume_period"`
	EfficiencyWindow int `yaml:"efficiency_window"`
}

// DefaultConfig returns the standard periods.
func DefaultConfig() Config {
	return Config{
		FastPeriod:       9,
		SlowPeriod:       21,
		RSIPeriod:        14,
		ATRPeriod:        14,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		VolumePeriod:     20,
		EfficiencyWindow: 20,
	}
}

// Validate checks that every period is usable.
func (c Config) Validate() error {
	if c.FastPeriod <= 0 || c.SlowPeriod <= c.FastPeriod {
		return fmt.Errorf("EMA periods must satisfy 0 < fast (%d) < slow (%d)", c.FastPeriod, c.SlowPeriod)
	}
	if c.RSIPeriod <= 0 || c.ATRPeriod <= 0 || c.VolumePeriod <= 0 {
		return fmt.Errorf("RSI, ATR and volume periods must be positive")
	}
	if c.MACDFast <= 0 || c.MACDSlow <= c.MACDFast || c.MACDSignal <= 0 {
		return fmt.Errorf("MACD periods must satisfy 0 < fast (%d) < slow (%d) and signal > 0", c.MACDFast, c.MACDSlow)
	}
	if c.EfficiencyWindow < 2 {
		return fmt.Errorf("efficiency window must be at least 2")
	}
	return nil
}

// SnapshotBuilder turns a kline window into a MarketSnapshot.
type SnapshotBuilder struct {
	cfg Config
}

// NewSnapshotBuilder validates cfg.
func NewSnapshotBuilder(cfg Config) (*SnapshotBuilder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SnapshotBuilder{cfg: cfg}, nil
}

// RequiredDataPoints is the shortest kline window Build accepts.
func (b *SnapshotBuilder) RequiredDataPoints() int {
	c := b.cfg
	need := c.SlowPeriod
	for _, n := range []int{c.RSIPeriod + 1, c.ATRPeriod + 1, c.MACDSlow + c.MACDSignal - 1, c.VolumePeriod, c.EfficiencyWindow + 1} {
		if n > need {
			need = n
		}
	}
	return need
}

// Build computes indicators, regime and volatility for the last kline.
func (b *SnapshotBuilder) Build(symbol string, klines []*domain.Kline) (*domain.MarketSnapshot, error) {
	if need := b.RequiredDataPoints(); len(klines) < need {
		return nil, fmt.Errorf("not enough klines for %s: need %d, got %d", symbol, need, len(klines))
	}
	c := b.cfg
	closes := indicators.Closes(klines)
	last := klines[len(klines)-1]

	fastSeries, err := indicators.EMASeries(closes, c.FastPeriod)
	if err != nil {
		return nil, fmt.Errorf("fast EMA: %w", err)
	}
	slow, err := indicators.EMA(closes, c.SlowPeriod)
	if err != nil {
		return nil, fmt.Errorf("slow EMA: %w", err)
	}
	rsi, err := indicators.RSI(closes, c.RSIPeriod)
	if err != nil {
		return nil, fmt.Errorf("RSI: %w", err)
	}
	atrSeries, err := indicators.ATRSeries(klines, c.ATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("ATR: %w", err)
	}
	macd, err := indicators.MACD(closes, c.MACDFast, c.MACDSlow, c.MACDSignal)
	if err != nil {
		return nil, fmt.Errorf("MACD: %w", err)
	}
	volumes := make([]float64, len(klines))
	for i, k := range klines {
		volumes[i] = k.Volume
	}
	avgVolume, _ := indicators.SMA(volumes, c.VolumePeriod)

	snap := &domain.MarketSnapshot{
		Symbol: symbol,
		Time:   last.CloseTime,
		Price:  last.Close,
		Klines: klines,
		Indicators: domain.Indicators{
			EMAFast:    fastSeries[len(fastSeries)-1],
			EMASlow:    slow,
			RSI:        rsi,
			ATR:        atrSeries[len(atrSeries)-1],
			MACD:       macd.MACD,
			MACDSignal: macd.Signal,
			Volume:     last.Volume,
			AvgVolume:  avgVolume,
		},
	}

	pct := ATRPercentile(atrSeries)
	snap.Volatility = VolatilityFromPercentile(pct)
	snap.Regime = ClassifyRegime(RegimeMetrics{
		ATRPercentile:   pct,
		TrendEfficiency: TrendEfficiency(closes, c.EfficiencyWindow),
		EMADiffPct:      snap.Relative().EMADiffPct,
		FastSlopePct:    SlopePct(fastSeries, c.EfficiencyWindow),
	})
	return snap, nil
}
