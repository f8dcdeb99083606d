package strategy

import (
	"context"
	"fmt"
	"math"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// LearningStrategy trades permissively to gather diverse decisions. It only
// reads relative quantities and scales risk down in drawdown.
type LearningStrategy struct {
	cfg      Config
	required int
	logger   ports.Logger
}

func (s *LearningStrategy) Name() string             { return "learning_relative" }
func (s *LearningStrategy) Mode() domain.TradingMode { return domain.ModeLearning }
func (s *LearningStrategy) RequiredDataPoints() int  { return s.required }

// RiskMultiplier softens risk as drawdown grows, never below the configured floor.
func (s *LearningStrategy) RiskMultiplier(state domain.RiskState) float64 {
	return s.cfg.Softening.Multiplier(state.CurrentDrawdown())
}

func (s *LearningStrategy) space(ind domain.Indicators) domain.DecisionSpace {
	fast, slow, rsi := ind.EMAFast, ind.EMASlow, ind.RSI
	return domain.DecisionSpace{
		BuyPossible:  (fast >= slow*0.999 && rsi < 60) || rsi < s.cfg.RSIOversold,
		SellPossible: (fast <= slow*1.001 && rsi > 40) || rsi > s.cfg.RSIOverbought,
	}
}

func (s *LearningStrategy) DecisionSpace(snapshot *domain.MarketSnapshot) domain.DecisionSpace {
	if snapshot == nil || len(snapshot.Klines) < s.required || snapshot.Indicators.EMASlow <= 0 {
		return domain.DecisionSpace{}
	}
	return s.space(snapshot.Indicators)
}

// Evaluate proposes BUY when allowed, otherwise SELL when allowed.
func (s *LearningStrategy) Evaluate(ctx context.Context, snapshot *domain.MarketSnapshot) *domain.Signal {
	space := s.DecisionSpace(snapshot)
	var side domain.OrderSide
	switch {
	case space.BuyPossible:
		side = domain.Buy
	case space.SellPossible:
		side = domain.Sell
	default:
		return nil
	}

	rel := snapshot.Relative()
	rsiNorm := (rel.RSI - 50) / 50
	return &domain.Signal{
		Side:           side,
		ReferencePrice: snapshot.Price,
		ExplicitStop:   explicitStop(s.cfg, side, snapshot.Price),
		Strength:       0.3 + math.Abs(rsiNorm)*0.3,
		Reason:         fmt.Sprintf("learning %s | RSI norm %.3f | EMA diff %.4f%%", side, rsiNorm, rel.EMADiffPct),
	}
}
