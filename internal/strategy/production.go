package strategy

import (
	"context"
	"math"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// ProductionStrategy only trades when trend, momentum and MACD agree.
type ProductionStrategy struct {
	cfg      Config
	required int
	logger   ports.Logger
}

func (s *ProductionStrategy) Name() string             { return "production_ema_rsi_macd" }
func (s *ProductionStrategy) Mode() domain.TradingMode { return domain.ModeProduction }
func (s *ProductionStrategy) RequiredDataPoints() int  { return s.required }

// RiskMultiplier is always 1: production risk is never scaled.
func (s *ProductionStrategy) RiskMultiplier(domain.RiskState) float64 { return 1 }

func (s *ProductionStrategy) bullish(ind domain.Indicators) bool {
	return ind.EMAFast > ind.EMASlow && ind.RSI < s.cfg.RSIOverbought && ind.MACD > ind.MACDSignal && ind.MACD > 0
}

func (s *ProductionStrategy) bearish(ind domain.Indicators) bool {
	return ind.EMAFast < ind.EMASlow && ind.RSI > s.cfg.RSIOversold && ind.MACD < ind.MACDSignal && ind.MACD < 0
}

// DecisionSpace reports the raw rule state, before the strength threshold.
func (s *ProductionStrategy) DecisionSpace(snapshot *domain.MarketSnapshot) domain.DecisionSpace {
	if snapshot == nil || len(snapshot.Klines) < s.required {
		return domain.DecisionSpace{}
	}
	return domain.DecisionSpace{
		BuyPossible:  s.bullish(snapshot.Indicators),
		SellPossible: s.bearish(snapshot.Indicators),
	}
}

// Strength scores a signal from the MA spread, RSI headroom and MACD ratio.
func (s *ProductionStrategy) Strength(ind domain.Indicators, side domain.OrderSide) float64 {
	if ind.EMASlow == 0 {
		return 0
	}
	maDiff := math.Abs(ind.EMAFast-ind.EMASlow) / ind.EMASlow * 100
	var rsiFactor float64
	if side == domain.Buy {
		rsiFactor = (s.cfg.RSIOverbought - ind.RSI) / s.cfg.RSIOverbought
	} else {
		rsiFactor = (ind.RSI - s.cfg.RSIOversold) / (100 - s.cfg.RSIOversold)
	}
	macdFactor := 0.0
	if ind.MACDSignal != 0 {
		macdFactor = math.Abs(ind.MACD / ind.MACDSignal)
	}
	return maDiff*0.4 + rsiFactor*0.3 + macdFactor*0.3
}

// Evaluate proposes an entry when all conditions line up and the signal is strong enough.
func (s *ProductionStrategy) Evaluate(ctx context.Context, snapshot *domain.MarketSnapshot) *domain.Signal {
	if snapshot == nil || len(snapshot.Klines) < s.required {
		s.logger.Debug(ctx, "Not enough kline data for strategy evaluation")
		return nil
	}
	ind := snapshot.Indicators

	var side domain.OrderSide
	var reason string
	switch {
	case s.bullish(ind):
		side, reason = domain.Buy, "bullish EMA cross + RSI + MACD"
	case s.bearish(ind):
		side, reason = domain.Sell, "bearish EMA cross + RSI + MACD"
	default:
		return nil
	}

	strength := s.Strength(ind, side)
	if strength <= s.cfg.MinStrength {
		s.logger.Debug(ctx, "Signal below minimum strength", map[string]interface{}{
			"symbol":   snapshot.Symbol,
			"side":     side,
			"strength": strength,
		})
		return nil
	}

	return &domain.Signal{
		Side:           side,
		ReferencePrice: snapshot.Price,
		ExplicitStop:   explicitStop(s.cfg, side, snapshot.Price),
		Strength:       strength,
		Reason:         reason,
	}
}
