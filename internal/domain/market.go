package domain

import "time"

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string
	Interval  string // Kline interval (e.g., "1m", "1h")
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	IsFinal   bool // Whether this kline is the final one for the interval
}

// Indicators are the precomputed values a snapshot carries.
type Indicators struct {
	EMAFast    float64
	EMASlow    float64
	RSI        float64
	ATR        float64
	MACD       float64
	MACDSignal float64
	Volume     float64
	AvgVolume  float64
}

// MarketSnapshot is the pure market input of one evaluation tick.
type MarketSnapshot struct {
	Symbol     string
	Time       time.Time
	Price      float64
	Klines     []*Kline
	Indicators Indicators
	Regime     MarketRegime
	Volatility VolatilityLevel
}

// RelativeIndicators holds only scale-free quantities derived from a snapshot.
// Nothing in here can be turned back into a price or an account value.
type RelativeIndicators struct {
	EMADiffPct     float64 // (fast - slow) / slow * 100
	RSI            float64 // 0..100
	ATRPct         float64 // atr / price * 100
	PriceToFastPct float64 // (price - fast) / fast * 100
	PriceToSlowPct float64 // (price - slow) / slow * 100
}

// Observation is what the decision sampler is allowed to see of a tick.
type Observation struct {
	Time       time.Time
	Symbol     string
	Relative   RelativeIndicators
	Regime     MarketRegime
	Volatility VolatilityLevel
}

// Relative projects the snapshot indicators onto percentages.
func (s *MarketSnapshot) Relative() RelativeIndicators {
	ind := s.Indicators
	rel := RelativeIndicators{RSI: ind.RSI}
	if ind.EMASlow > 0 {
		rel.EMADiffPct = (ind.EMAFast - ind.EMASlow) / ind.EMASlow * 100
		rel.PriceToSlowPct = (s.Price - ind.EMASlow) / ind.EMASlow * 100
	}
	if ind.EMAFast > 0 {
		rel.PriceToFastPct = (s.Price - ind.EMAFast) / ind.EMAFast * 100
	}
	if s.Price > 0 {
		rel.ATRPct = ind.ATR / s.Price * 100
	}
	return rel
}

// Observation strips the snapshot down to the sampler's view.
func (s *MarketSnapshot) Observation() Observation {
	return Observation{
		Time:       s.Time,
		Symbol:     s.Symbol,
		Relative:   s.Relative(),
		Regime:     s.Regime,
		Volatility: s.Volatility,
	}
}

// Signal is a strategy's proposal to enter a trade.
type Signal struct {
	Side               OrderSide
	ReferencePrice     float64
	ExplicitStop       float64 // 0 means derive the stop from volatility
	TakeProfitMultiple float64 // 0 means use the configured default
	Strength           float64
	Reason             string
}

// HasExplicitStop reports whether the strategy chose its own stop.
func (s *Signal) HasExplicitStop() bool {
	return s.ExplicitStop != 0
}

// DecisionSpace lists the entries the strategy's own rules currently allow.
type DecisionSpace struct {
	BuyPossible  bool
	SellPossible bool
}

// Actions returns the permitted actions. HOLD is always present.
func (d DecisionSpace) Actions() []Action {
	actions := make([]Action, 0, 3)
	if d.BuyPossible {
		actions = append(actions, ActionBuy)
	}
	if d.SellPossible {
		actions = append(actions, ActionSell)
	}
	return append(actions, ActionHold)
}
