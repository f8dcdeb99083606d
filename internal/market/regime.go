package market

import (
	"math"

	"dailyTrader/internal/domain"
)

// Regime thresholds. Percentiles are in 0..100.
const (
	chaoticATRPercentile   = 85.0
	chaoticMaxEfficiency   = 0.3
	highVolATRPercentile   = 75.0
	lowVolATRPercentile    = 20.0
	trendingMinEfficiency  = 0.5
	trendingMinEMADiffPct  = 2.0
	volatilityHighBoundary = 75.0
	volatilityLowBoundary  = 25.0
)

// RegimeMetrics are the measurements the classifier works from.
type RegimeMetrics struct {
	ATRPercentile   float64 // Share of the ATR window below the current ATR, 0..100
	TrendEfficiency float64 // Net move over path length, 0..1
	EMADiffPct      float64 // (fast - slow) / slow * 100
	FastSlopePct    float64 // Average per-bar slope of the fast EMA, in percent
}

// ATRPercentile returns the percentage of values in series strictly below its
// last element.
func ATRPercentile(series []float64) float64 {
	if len(series) == 0 {
		return 50
	}
	current := series[len(series)-1]
	below := 0
	for _, v := range series {
		if current > v {
			below++
		}
	}
	return float64(below) / float64(len(series)) * 100
}

// TrendEfficiency compares the net close-to-close move over window bars with
// the total distance travelled. A straight line scores 1.
func TrendEfficiency(closes []float64, window int) float64 {
	n := len(closes)
	if window < 2 || n < window+1 {
		return 0
	}
	net := math.Abs(closes[n-1] - closes[n-1-window])
	path := 0.0
	for i := n - window; i < n; i++ {
		path += math.Abs(closes[i] - closes[i-1])
	}
	if path == 0 {
		return 0
	}
	return net / path
}

// SlopePct is the average per-bar change of the last window values, as a
// percentage of the first of them.
func SlopePct(series []float64, window int) float64 {
	if len(series) < 2 {
		return 0
	}
	if window > len(series) || window < 2 {
		window = len(series)
	}
	tail := series[len(series)-window:]
	if tail[0] == 0 {
		return 0
	}
	slope := (tail[len(tail)-1] - tail[0]) / float64(len(tail))
	return slope / tail[0] * 100
}

// VolatilityFromPercentile buckets an ATR percentile.
func VolatilityFromPercentile(p float64) domain.VolatilityLevel {
	switch {
	case p > volatilityHighBoundary:
		return domain.VolatilityHigh
	case p < volatilityLowBoundary:
		return domain.VolatilityLow
	default:
		return domain.VolatilityMedium
	}
}

// ClassifyRegime applies the rules in priority order: chaotic, high
// volatility, low volatility, trending, then ranging.
func ClassifyRegime(m RegimeMetrics) domain.MarketRegime {
	if m.ATRPercentile > chaoticATRPercentile && m.TrendEfficiency < chaoticMaxEfficiency {
		return domain.RegimeChaotic
	}
	if m.ATRPercentile > highVolATRPercentile {
		return domain.RegimeHighVolatility
	}
	if m.ATRPercentile < lowVolATRPercentile {
		return domain.RegimeLowVolatility
	}
	if m.TrendEfficiency > trendingMinEfficiency {
		if m.EMADiffPct > trendingMinEMADiffPct && m.FastSlopePct > 0 {
			return domain.RegimeTrendingBullish
		}
		if m.EMADiffPct < -trendingMinEMADiffPct && m.FastSlopePct < 0 {
			return domain.RegimeTrendingBearish
		}
	}
	return domain.RegimeRanging
}
