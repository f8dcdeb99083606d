package ports

import (
	"context"
	"time"

	"dailyTrader/internal/domain"
)

// OrderRequest asks the transport to open exposure at market.
type OrderRequest struct {
	Symbol         string
	Side           domain.OrderSide
	Quantity       float64
	ReferencePrice float64 // Price the decision was made at; used by simulated transports
	ClientOrderID  string
}

// Fill is the executed part of an order.
type Fill struct {
	OrderID  string
	Symbol   string
	Side     domain.OrderSide
	Quantity float64
	Price    float64 // Average fill price
	FilledAt time.Time
}

// OrderTransport submits orders to an execution venue.
// Implementations own their timeouts; a timed out call must return an error
// and the engine assumes nothing was executed.
type OrderTransport interface {
	// Execute opens exposure at market.
	Execute(ctx context.Context, req OrderRequest) (*Fill, error)
	// Close flattens the given position at market.
	Close(ctx context.Context, pos *domain.Position, marketPrice float64) (*Fill, error)
}

// PositionSource reports positions that exist on the venue.
// It is the source of truth for position existence after a restart.
type PositionSource interface {
	OpenPositions(ctx context.Context, symbols []string) ([]*domain.Position, error)
}

// MarketDataProvider supplies klines, historical and streamed.
type MarketDataProvider interface {
	// GetKlines retrieves the most recent klines for the given symbol.
	GetKlines(ctx context.Context, symbol string, interval string, limit int) ([]*domain.Kline, error)

	// StreamKlines starts a WebSocket stream for K-line/candlestick data.
	// Returns channels to control the stream (doneCh, stopCh) or an error if connection fails.
	StreamKlines(ctx context.Context, symbol, interval string, handler func(kline *domain.Kline), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error)
}

// PositionRecorder is implemented by venues that keep their own record of
// protective levels, such as the paper transport.
type PositionRecorder interface {
	Record(ctx context.Context, pos *domain.Position) error
}
