package risk

import "math"

// Softening scales risk down as drawdown grows without ever reaching zero:
// multiplier = max(MinMultiplier, 1 - Slope*drawdown).
type Softening struct {
	Slope         float64 `yaml:"slope"`
	MinMultiplier float64 `yaml:"min_multiplier"`
}

// Multiplier returns the risk multiplier for a drawdown fraction.
func (s Softening) Multiplier(drawdown float64) float64 {
	if math.IsNaN(drawdown) || drawdown <= 0 {
		return 1
	}
	m := 1 - s.Slope*drawdown
	if m > 1 {
		m = 1
	}
	return math.Max(s.MinMultiplier, m)
}
