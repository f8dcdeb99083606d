package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Sign returns +1 for longs and -1 for shorts.
func (s OrderSide) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// Opposite returns the side that reduces a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == Sell {
		return Buy
	}
	return Sell
}

// Valid reports whether s is BUY or SELL.
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// Action is what the agent did (or could do) on a tick.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ActionForSide maps an order side to its trading action.
func ActionForSide(s OrderSide) Action {
	if s == Sell {
		return ActionSell
	}
	return ActionBuy
}

// PositionStatus represents the status of a trading position.
type PositionStatus string

const (
	StatusPendingOpen PositionStatus = "pending_open"
	StatusOpen        PositionStatus = "open"
	StatusClosed      PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonTimeStop   CloseReason = "time_stop"
	CloseReasonStopLoss   CloseReason = "stop_loss"
	CloseReasonTakeProfit CloseReason = "take_profit"
	CloseReasonUnknown    CloseReason = "unknown"
)

// Outcome is the closed taxonomy of per-tick decision results.
type Outcome string

const (
	OutcomeAccepted            Outcome = "accepted"
	OutcomeRejectedByRisk      Outcome = "rejected_by_risk"
	OutcomeRejectedByLimits    Outcome = "rejected_by_limits"
	OutcomeRejectedByFilters   Outcome = "rejected_by_filters"
	OutcomeRejectedByExecution Outcome = "rejected_by_execution"
	OutcomeNoSignal            Outcome = "no_signal"
)

// Outcomes lists every valid outcome.
var Outcomes = []Outcome{
	OutcomeAccepted,
	OutcomeRejectedByRisk,
	OutcomeRejectedByLimits,
	OutcomeRejectedByFilters,
	OutcomeRejectedByExecution,
	OutcomeNoSignal,
}

// Valid reports whether o belongs to the taxonomy.
func (o Outcome) Valid() bool {
	for _, v := range Outcomes {
		if o == v {
			return true
		}
	}
	return false
}

// TradingMode selects between the selective production strategy and the
// permissive data-gathering one.
type TradingMode string

const (
	ModeProduction TradingMode = "production"
	ModeLearning   TradingMode = "learning"
)

// MarketRegime classifies the recent market structure.
type MarketRegime string

const (
	RegimeTrendingBullish MarketRegime = "trending_bullish"
	RegimeTrendingBearish MarketRegime = "trending_bearish"
	RegimeRanging         MarketRegime = "ranging"
	RegimeHighVolatility  MarketRegime = "high_volatility"
	RegimeLowVolatility   MarketRegime = "low_volatility"
	RegimeChaotic         MarketRegime = "chaotic"
)

// VolatilityLevel buckets the current ATR against its recent history.
type VolatilityLevel string

const (
	VolatilityHigh   VolatilityLevel = "high"
	VolatilityMedium VolatilityLevel = "medium"
	VolatilityLow    VolatilityLevel = "low"
)
