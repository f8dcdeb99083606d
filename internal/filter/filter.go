package filter

import (
	"context"
	"fmt"
	"sync"

	"dailyTrader/internal/domain"
)

// Config holds the veto rules. Zero values disable a rule.
type Config struct {
	MaxATRPct          float64               `yaml:"max_atr_pct"`          // e.g., 5.0 rejects when ATR exceeds 5% of price
	BlockedRegimes     []domain.MarketRegime `yaml:"blocked_regimes"`      // e.g., [chaotic]
	MaxConsecutiveSame int                   `yaml:"max_consecutive_same"` // e.g., 3
}

type streak struct {
	side  domain.OrderSide
	count int
}

// RuleFilter vetoes signals in hostile conditions and breaks up long runs of
// same-side signals on one symbol.
type RuleFilter struct {
	cfg     Config
	blocked map[domain.MarketRegime]bool

	mu      sync.Mutex
	streaks map[string]*streak
}

// NewRuleFilter returns a filter enforcing cfg.
func NewRuleFilter(cfg Config) *RuleFilter {
	blocked := make(map[domain.MarketRegime]bool, len(cfg.BlockedRegimes))
	for _, r := range cfg.BlockedRegimes {
		blocked[r] = true
	}
	return &RuleFilter{cfg: cfg, blocked: blocked, streaks: make(map[string]*streak)}
}

// Allow implements ports.SignalFilter. Only allowed signals extend a streak.
func (f *RuleFilter) Allow(ctx context.Context, signal *domain.Signal, obs domain.Observation) (bool, string) {
	if signal == nil {
		return false, "no signal"
	}
	if f.cfg.MaxATRPct > 0 && obs.Relative.ATRPct > f.cfg.MaxATRPct {
		return false, fmt.Sprintf("volatility %.2f%% above %.2f%%", obs.Relative.ATRPct, f.cfg.MaxATRPct)
	}
	if f.blocked[obs.Regime] {
		return false, fmt.Sprintf("regime %s is blocked", obs.Regime)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.streaks[obs.Symbol]
	if s == nil {
		s = &streak{}
		f.streaks[obs.Symbol] = s
	}
	if s.side == signal.Side {
		if f.cfg.MaxConsecutiveSame > 0 && s.count >= f.cfg.MaxConsecutiveSame {
			return false, fmt.Sprintf("%d/%d consecutive %s signals", s.count, f.cfg.MaxConsecutiveSame, signal.Side)
		}
		s.count++
	} else {
		s.side = signal.Side
		s.count = 1
	}
	return true, ""
}

// Reset forgets the streak of symbol, e.g. after its position closed.
func (f *RuleFilter) Reset(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.streaks, symbol)
}
