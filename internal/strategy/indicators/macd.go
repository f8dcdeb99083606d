package indicators

import "fmt"

// MACDResult holds the latest MACD line and signal line values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes EMA(fast) - EMA(slow) and its EMA(signal) smoothing.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDResult{}, fmt.Errorf("invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if need := slow + signal - 1; len(closes) < need {
		return MACDResult{}, fmt.Errorf("not enough data (%d) to calculate MACD, need %d", len(closes), need)
	}

	fastSeries, _ := EMASeries(closes, fast)
	slowSeries, _ := EMASeries(closes, slow)

	// both series end on the last close; align them on the slow one
	offset := slow - fast
	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	signalSeries, err := EMASeries(line, signal)
	if err != nil {
		return MACDResult{}, err
	}
	res := MACDResult{
		MACD:   line[len(line)-1],
		Signal: signalSeries[len(signalSeries)-1],
	}
	res.Histogram = res.MACD - res.Signal
	return res, nil
}
