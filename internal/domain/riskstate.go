package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout of RiskState.LastResetDate.
const DateLayout = "2006-01-02"

// RiskState is the accounting snapshot owned by the risk ledger.
// Money fields are decimals so that persisted state round-trips exactly.
type RiskState struct {
	InitialEquity decimal.Decimal
	Equity        decimal.Decimal
	DailyPnL      decimal.Decimal
	TradesToday   int
	PeakEquity    decimal.Decimal
	MaxDrawdown   float64 // Largest peak-to-trough decline seen, as a fraction
	LastResetDate string  // Trading day the daily counters belong to
	SavedAt       time.Time
}

// DefaultRiskState is the state of a fresh account with the given capital.
func DefaultRiskState(initialEquity float64, now time.Time) RiskState {
	eq := decimal.NewFromFloat(initialEquity)
	return RiskState{
		InitialEquity: eq,
		Equity:        eq,
		DailyPnL:      decimal.Zero,
		PeakEquity:    eq,
		LastResetDate: now.Format(DateLayout),
	}
}

// EquityFloat returns the equity as a float for sizing and validation.
func (s RiskState) EquityFloat() float64 {
	return s.Equity.InexactFloat64()
}

// DailyPnLFloat returns the day's realized P&L as a float.
func (s RiskState) DailyPnLFloat() float64 {
	return s.DailyPnL.InexactFloat64()
}

// DayStartEquity is the equity before today's realized P&L.
func (s RiskState) DayStartEquity() decimal.Decimal {
	return s.Equity.Sub(s.DailyPnL)
}

// CurrentDrawdown is the fractional decline of equity from its peak.
func (s RiskState) CurrentDrawdown() float64 {
	if !s.PeakEquity.IsPositive() {
		return 0
	}
	dd := s.PeakEquity.Sub(s.Equity).Div(s.PeakEquity)
	if dd.IsNegative() {
		return 0
	}
	return dd.InexactFloat64()
}

// Equal reports whether two snapshots hold the same accounting values.
// SavedAt is ignored.
func (s RiskState) Equal(o RiskState) bool {
	return s.InitialEquity.Equal(o.InitialEquity) &&
		s.Equity.Equal(o.Equity) &&
		s.DailyPnL.Equal(o.DailyPnL) &&
		s.TradesToday == o.TradesToday &&
		s.PeakEquity.Equal(o.PeakEquity) &&
		s.MaxDrawdown == o.MaxDrawdown &&
		s.LastResetDate == o.LastResetDate
}
