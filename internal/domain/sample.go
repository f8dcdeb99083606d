package domain

import "time"

// DecisionSample is one append-only record of the decision log.
// Features contain relative quantities only.
type DecisionSample struct {
	ID             string
	Timestamp      time.Time
	Symbol         string
	Mode           TradingMode
	Features       map[string]float64
	DecisionSpace  []Action
	ProposedAction Action
	ExecutedAction Action
	Outcome        Outcome
	Reason         string
	MarketRegime   MarketRegime
	Volatility     VolatilityLevel
}

// Allows reports whether action was part of the sample's decision space.
func (s *DecisionSample) Allows(action Action) bool {
	for _, a := range s.DecisionSpace {
		if a == action {
			return true
		}
	}
	return false
}
