package risk

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
)

// RiskLedger is the single owner of equity, daily P&L, trade counters, peak
// equity and drawdown. ApplyTradeResult is the only accounting write path.
type RiskLedger struct {
	mu    sync.RWMutex
	state domain.RiskState
	loc   *time.Location
}

// NewRiskLedger seeds the ledger with a loaded or default state.
// Trading days are computed in loc (UTC when nil).
func NewRiskLedger(initial domain.RiskState, loc *time.Location) *RiskLedger {
	if loc == nil {
		loc = time.UTC
	}
	if initial.PeakEquity.LessThan(initial.Equity) {
		initial.PeakEquity = initial.Equity
	}
	return &RiskLedger{state: initial, loc: loc}
}

// Snapshot returns a copy of the current state.
func (l *RiskLedger) Snapshot() domain.RiskState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// ApplyTradeResult books one closed trade and returns the resulting state.
func (l *RiskLedger) ApplyTradeResult(pnl decimal.Decimal) domain.RiskState {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := &l.state
	s.Equity = s.Equity.Add(pnl)
	s.DailyPnL = s.DailyPnL.Add(pnl)
	s.TradesToday++
	if s.Equity.GreaterThan(s.PeakEquity) {
		s.PeakEquity = s.Equity
	}
	if dd := s.CurrentDrawdown(); dd > s.MaxDrawdown {
		s.MaxDrawdown = dd
	}
	return *s
}

// RollDay resets the daily counters when now falls on a new trading day.
// It reports whether a reset happened.
func (l *RiskLedger) RollDay(now time.Time) bool {
	day := now.In(l.loc).Format(domain.DateLayout)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.LastResetDate == day {
		return false
	}
	l.state.DailyPnL = decimal.Zero
	l.state.TradesToday = 0
	l.state.LastResetDate = day
	return true
}

// Drawdown is the current fractional decline from peak equity.
func (l *RiskLedger) Drawdown() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.CurrentDrawdown()
}
