package domain

import "time"

// Trade represents a completed (closed) position.
type Trade struct {
	ID            int64       // Unique identifier for the trade (usually from DB)
	PositionID    string      // Identifier of the position this trade closed
	Symbol        string      // Trading symbol (e.g., "ETHUSDT")
	Side          OrderSide   // Side of the entry
	EntryPrice    float64     // Price at which the position was entered
	ExitPrice     float64     // Fill price of the closing order
	Quantity      float64     // Size of the position traded
	PNL           float64     // Realized profit and loss
	RiskAmount    float64     // Capital that was at risk at entry
	RMultiple     float64     // PNL / RiskAmount
	MaxFavorableR float64     // Best unrealized R seen while open
	MaxAdverseR   float64     // Worst unrealized R seen while open
	EntryTime     time.Time   // Timestamp when the position was entered
	ExitTime      time.Time   // Timestamp when the position was exited
	CloseReason   CloseReason // Reason why the position was closed
}

// HoldDuration is the time the position stayed open.
func (t *Trade) HoldDuration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
