package ports

import (
	"context"

	"dailyTrader/internal/domain"
)

// StateRepository persists the risk ledger snapshot.
type StateRepository interface {
	// SaveState replaces the stored snapshot.
	SaveState(ctx context.Context, state domain.RiskState) error
	// LoadState returns the stored snapshot.
	// Returns nil, nil if nothing was saved yet and an error wrapping
	// ErrStateCorruption if the stored values cannot be decoded.
	LoadState(ctx context.Context) (*domain.RiskState, error)
}

// TradeRepository defines the interface for storing and retrieving completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// FindAll retrieves every trade ordered by exit time.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
}

// DecisionSink receives the decision samples that survive down-sampling.
type DecisionSink interface {
	Append(ctx context.Context, sample *domain.DecisionSample) error
}

// PositionBook is the record of positions held by a simulated venue.
type PositionBook interface {
	// SavePosition inserts or replaces a position.
	SavePosition(ctx context.Context, pos *domain.Position) error
	// DeletePosition removes a position once it has been flattened.
	DeletePosition(ctx context.Context, id string) error
	// FindOpenPositions returns every position still held.
	FindOpenPositions(ctx context.Context) ([]*domain.Position, error)
}
