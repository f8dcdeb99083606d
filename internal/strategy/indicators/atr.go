package indicators

import (
	"fmt"
	"math"

	"dailyTrader/internal/domain"
)

// TrueRanges returns the true range of every kline. The first one has no
// previous close and uses high - low.
func TrueRanges(klines []*domain.Kline) []float64 {
	trs := make([]float64, len(klines))
	for i, k := range klines {
		if i == 0 {
			trs[i] = k.High - k.Low
			continue
		}
		prevClose := klines[i-1].Close
		trs[i] = math.Max(k.High-k.Low, math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
	}
	return trs
}

// ATRSeries returns Wilder-smoothed ATR values. The first element averages
// the first period true ranges; one value follows per remaining kline.
func ATRSeries(klines []*domain.Kline, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid ATR period %d", period)
	}
	if len(klines) < period+1 {
		return nil, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(klines))
	}

	trs := TrueRanges(klines)
	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)

	series := make([]float64, 0, len(klines)-period+1)
	series = append(series, atr)
	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
		series = append(series, atr)
	}
	return series, nil
}

// ATR computes the latest Average True Range value.
func ATR(klines []*domain.Kline, period int) (float64, error) {
	series, err := ATRSeries(klines, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}
