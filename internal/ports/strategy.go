package ports

import (
	"context"

	"dailyTrader/internal/domain"
)

// Strategy defines the interface for trading strategies.
// Production and data-gathering behaviour are two implementations of it;
// the engine treats them identically.
type Strategy interface {
	// Name identifies the strategy in logs and samples.
	Name() string

	// Mode is the trading mode this strategy implements.
	Mode() domain.TradingMode

	// RequiredDataPoints returns the minimum number of klines needed for the strategy calculations.
	RequiredDataPoints() int

	// Evaluate proposes an entry, or returns nil when there is none.
	Evaluate(ctx context.Context, snapshot *domain.MarketSnapshot) *domain.Signal

	// DecisionSpace reports which entries the strategy's rules currently allow.
	DecisionSpace(snapshot *domain.MarketSnapshot) domain.DecisionSpace

	// RiskMultiplier scales the configured risk fraction for the given ledger state.
	RiskMultiplier(state domain.RiskState) float64
}

// SignalFilter is an optional veto applied after sizing and before validation.
type SignalFilter interface {
	// Allow returns false and a reason when the signal must not be traded.
	Allow(ctx context.Context, signal *domain.Signal, obs domain.Observation) (bool, string)
}
