package domain

import "time"

// Position represents a position supervised by the lifecycle manager.
type Position struct {
	ID           string         // uuid assigned when the position is created
	Symbol       string         // Trading symbol (e.g., "ETHUSDT")
	Side         OrderSide      // BUY for long, SELL for short
	EntryPrice   float64        // Fill price of the entry order
	Quantity     float64        // Unsigned size of the position
	StopLoss     float64        // Protective stop price
	TakeProfit   float64        // Profit target price
	RiskAmount   float64        // Capital at risk between entry and the initial stop
	RiskDistance float64        // Price distance of one R
	OpenedAt     time.Time      // Time the entry was filled
	Status       PositionStatus // pending_open, open or closed
	EntryOrderID string         // Transport order id of the entry

	HighestFavorableExcursion float64 // Best move in our favour, in price units (>= 0)
	LowestAdverseExcursion    float64 // Worst move against us, in price units (<= 0)
	BestPrice                 float64 // Most favourable price seen while open

	BreakevenArmed bool
	TrailingArmed  bool
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// IsProtected reports whether both exit levels are set on the correct side of entry.
func (p *Position) IsProtected() bool {
	if p.StopLoss <= 0 || p.TakeProfit <= 0 {
		return false
	}
	if p.Side == Sell {
		return p.TakeProfit < p.EntryPrice && p.StopLoss > p.TakeProfit
	}
	return p.TakeProfit > p.EntryPrice && p.StopLoss < p.TakeProfit
}

// SignedQuantity is positive for longs and negative for shorts.
func (p *Position) SignedQuantity() float64 {
	return p.Quantity * p.Side.Sign()
}

// Notional is the entry value of the position.
func (p *Position) Notional() float64 {
	return p.Quantity * p.EntryPrice
}

// FavorableMove is the signed price move in the position's favour.
func (p *Position) FavorableMove(price float64) float64 {
	return (price - p.EntryPrice) * p.Side.Sign()
}

// UnrealizedR expresses the open profit at price in multiples of the risk distance.
func (p *Position) UnrealizedR(price float64) float64 {
	if p.RiskDistance <= 0 {
		return 0
	}
	return p.FavorableMove(price) / p.RiskDistance
}
