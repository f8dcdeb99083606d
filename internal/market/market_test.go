package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/internal/domain"
)

func risingKlines(n int) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		out[i] = &domain.Kline{
			OpenTime:  start.Add(time.Duration(i) * time.Minute),
			CloseTime: start.Add(time.Duration(i+1)*time.Minute - time.Millisecond),
			Symbol:    "BTCUSDT",
			Interval:  "1m",
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10 + float64(i%3),
			IsFinal:   true,
		}
	}
	return out
}

func TestATRPercentile(t *testing.T) {
	assert.Equal(t, 75.0, ATRPercentile([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0.0, ATRPercentile([]float64{4, 3, 2, 1}))
	assert.Equal(t, 50.0, ATRPercentile(nil))
}

func TestTrendEfficiency(t *testing.T) {
	line := []float64{1, 2, 3, 4, 5, 6}
	assert.InDelta(t, 1.0, TrendEfficiency(line, 5), 1e-12)

	zigzag := []float64{10, 11, 10, 11, 10, 11}
	// net 1 over five moves of 1
	assert.InDelta(t, 0.2, TrendEfficiency(zigzag, 5), 1e-12)

	assert.Equal(t, 0.0, TrendEfficiency(line, 10), "too short")
}

func TestVolatilityFromPercentile(t *testing.T) {
	assert.Equal(t, domain.VolatilityHigh, VolatilityFromPercentile(80))
	assert.Equal(t, domain.VolatilityLow, VolatilityFromPercentile(10))
	assert.Equal(t, domain.VolatilityMedium, VolatilityFromPercentile(75))
	assert.Equal(t, domain.VolatilityMedium, VolatilityFromPercentile(25))
}

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		name string
		m    RegimeMetrics
		want domain.MarketRegime
	}{
		{"chaotic", RegimeMetrics{ATRPercentile: 90, TrendEfficiency: 0.1}, domain.RegimeChaotic},
		{"high vol with trend", RegimeMetrics{ATRPercentile: 90, TrendEfficiency: 0.8, EMADiffPct: 5, FastSlopePct: 1}, domain.RegimeHighVolatility},
		{"low vol", RegimeMetrics{ATRPercentile: 10, TrendEfficiency: 0.9, EMADiffPct: 5, FastSlopePct: 1}, domain.RegimeLowVolatility},
		{"bullish", RegimeMetrics{ATRPercentile: 50, TrendEfficiency: 0.6, EMADiffPct: 2.5, FastSlopePct: 0.1}, domain.RegimeTrendingBullish},
		{"bearish", RegimeMetrics{ATRPercentile: 50, TrendEfficiency: 0.6, EMADiffPct: -2.5, FastSlopePct: -0.1}, domain.RegimeTrendingBearish},
		{"efficient but flat", RegimeMetrics{ATRPercentile: 50, TrendEfficiency: 0.6, EMADiffPct: 1}, domain.RegimeRanging},
		{"slope disagrees", RegimeMetrics{ATRPercentile: 50, TrendEfficiency: 0.6, EMADiffPct: 3, FastSlopePct: -0.1}, domain.RegimeRanging},
		{"default", RegimeMetrics{ATRPercentile: 50, TrendEfficiency: 0.2}, domain.RegimeRanging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegime(tt.m))
		})
	}
}

func TestNewSnapshotBuilder_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlowPeriod = cfg.FastPeriod
	_, err := NewSnapshotBuilder(cfg)
	assert.Error(t, err)
}

func TestSnapshotBuilder_Build(t *testing.T) {
	b, err := NewSnapshotBuilder(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 34, b.RequiredDataPoints())

	_, err = b.Build("BTCUSDT", risingKlines(20))
	require.Error(t, err)

	klines := risingKlines(60)
	snap, err := b.Build("BTCUSDT", klines)
	require.NoError(t, err)

	last := klines[len(klines)-1]
	assert.Equal(t, last.Close, snap.Price)
	assert.True(t, snap.Time.Equal(last.CloseTime))
	assert.Greater(t, snap.Indicators.EMAFast, snap.Indicators.EMASlow)
	assert.Equal(t, 100.0, snap.Indicators.RSI)
	assert.Greater(t, snap.Indicators.MACD, 0.0)
	assert.InDelta(t, 2.0, snap.Indicators.ATR, 1e-9)
	// constant ATR sits at the bottom of its own window
	assert.Equal(t, domain.VolatilityLow, snap.Volatility)
	assert.Equal(t, domain.RegimeLowVolatility, snap.Regime)

	rel := snap.Relative()
	assert.Greater(t, rel.EMADiffPct, 0.0)
	assert.InDelta(t, 2.0/last.Close*100, rel.ATRPct, 1e-9)
}
