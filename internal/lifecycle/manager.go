package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/risk"
	"dailyTrader/internal/utils"
)

// Config holds the exit rules applied to open positions.
type Config struct {
	MaxHoldDuration           time.Duration `yaml:"max_hold_duration"`
	TrailArmR                 float64       `yaml:"trail_arm_r"`
	TrailATRMultiple          float64       `yaml:"trail_atr_multiple"`
	TrailRMultiple            float64       `yaml:"trail_r_multiple"`
	BreakevenArmR             float64       `yaml:"breakeven_arm_r"`
	BreakevenBuffer           float64       `yaml:"breakeven_buffer"`
	RestoreStopFraction       float64       `yaml:"restore_stop_fraction"`
	RestoreTakeProfitMultiple float64       `yaml:"restore_take_profit_multiple"`
}

// DefaultConfig returns the standard exit rules.
func DefaultConfig() Config {
	return Config{
		MaxHoldDuration:           240 * time.Minute,
		TrailArmR:                 1.5,
		TrailATRMultiple:          1.0,
		TrailRMultiple:            1.0,
		BreakevenArmR:             1.0,
		BreakevenBuffer:           0.001,
		RestoreStopFraction:       0.02,
		RestoreTakeProfitMultiple: 2.0,
	}
}

// Validate checks the exit rules.
func (c Config) Validate() error {
	var errs []string
	if c.MaxHoldDuration <= 0 {
		errs = append(errs, "max hold duration must be positive")
	}
	if c.TrailArmR < 0 || c.TrailATRMultiple < 0 || c.TrailRMultiple < 0 {
		errs = append(errs, "trailing parameters cannot be negative")
	}
	if c.BreakevenArmR < 0 || c.BreakevenBuffer < 0 || c.BreakevenBuffer >= 1 {
		errs = append(errs, "breakeven arm must be >= 0 and buffer in [0, 1)")
	}
	if c.RestoreStopFraction <= 0 || c.RestoreStopFraction >= 1 {
		errs = append(errs, "restore stop fraction must be in (0, 1)")
	}
	if c.RestoreTakeProfitMultiple <= 0 {
		errs = append(errs, "restore take-profit multiple must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid lifecycle config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FlattenedError is returned by Open when the fill left the position
// unprotected and it was closed at once. Trade is the booked round trip.
type FlattenedError struct {
	Trade *domain.Trade
}

func (e *FlattenedError) Error() string {
	return fmt.Sprintf("Open failed: %v: position %s flattened", ports.ErrUnprotectedPosition, e.Trade.PositionID)
}

func (e *FlattenedError) Unwrap() error {
	return ports.ErrUnprotectedPosition
}

// TradeResultApplier books realized P&L. It is satisfied by *risk.RiskLedger.
type TradeResultApplier interface {
	ApplyTradeResult(pnl decimal.Decimal) domain.RiskState
}

// Tick is the market input of one sweep.
type Tick struct {
	Symbol string
	Price  float64
	ATR    float64 // 0 when unknown
	Time   time.Time
}

// AdjustmentKind names a stop modification.
type AdjustmentKind string

const (
	AdjustTrailing  AdjustmentKind = "trailing_stop"
	AdjustBreakeven AdjustmentKind = "breakeven"
)

// Adjustment records a stop that was tightened during a sweep.
type Adjustment struct {
	PositionID string
	Symbol     string
	Kind       AdjustmentKind
	OldStop    float64
	NewStop    float64
}

// SweepResult is everything that happened to the open set during one sweep.
type SweepResult struct {
	Closed      []*domain.Trade
	Adjustments []Adjustment
	Failures    []error
}

type tracked struct {
	pos           *domain.Position
	inFlight      bool
	closeFailures int
}

// Manager owns the open positions. Every exit goes through closePosition,
// which books the result on the ledger exactly once.
type Manager struct {
	cfg       Config
	transport ports.OrderTransport
	ledger    TradeResultApplier
	logger    ports.Logger

	mu   sync.Mutex
	open map[string]*tracked
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config, transport ports.OrderTransport, ledger TradeResultApplier, logger ports.Logger) (*Manager, error) {
	if transport == nil {
		return nil, fmt.Errorf("order transport is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       cfg,
		transport: transport,
		ledger:    ledger,
		logger:    logger,
		open:      make(map[string]*tracked),
	}, nil
}

// Open executes a sized trade and registers the resulting position. Failed
// opens are never retried.
func (m *Manager) Open(ctx context.Context, trade *risk.SizedTrade, now time.Time) (*domain.Position, error) {
	op := "Open"
	if trade == nil {
		return nil, fmt.Errorf("%s failed: %w: no trade", op, ports.ErrInvalidRequest)
	}

	pos := &domain.Position{
		ID:           utils.NewPositionID(),
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		EntryPrice:   trade.EntryPrice,
		Quantity:     trade.Quantity,
		StopLoss:     trade.StopLoss,
		TakeProfit:   trade.TakeProfit,
		RiskAmount:   trade.RiskAmount,
		RiskDistance: trade.RiskDistance,
		Status:       domain.StatusPendingOpen,
	}

	fill, err := m.transport.Execute(ctx, ports.OrderRequest{
		Symbol:         trade.Symbol,
		Side:           trade.Side,
		Quantity:       trade.Quantity,
		ReferencePrice: trade.EntryPrice,
		ClientOrderID:  pos.ID,
	})
	if err == nil && (fill == nil || fill.Price <= 0 || fill.Quantity <= 0) {
		err = errors.New("transport returned an empty fill")
	}
	if err != nil {
		m.logger.Error(ctx, err, op+": Entry order failed", map[string]interface{}{
			"symbol": trade.Symbol,
			"side":   trade.Side,
			"qty":    trade.Quantity,
		})
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrTransportFailure, err)
	}

	// Keep the planned R distance around the actual fill.
	sign := pos.Side.Sign()
	pos.EntryPrice = fill.Price
	pos.Quantity = fill.Quantity
	pos.StopLoss = fill.Price - trade.RiskDistance*sign
	pos.TakeProfit = fill.Price + trade.RiskDistance*trade.TakeProfitMultiple*sign
	pos.RiskAmount = fill.Quantity * trade.RiskDistance
	pos.BestPrice = fill.Price
	pos.EntryOrderID = fill.OrderID
	pos.OpenedAt = now

	t := &tracked{pos: pos}
	if !pos.IsProtected() {
		m.logger.Warn(ctx, op+": Fill leaves position unprotected, flattening", map[string]interface{}{
			"positionID": pos.ID,
			"fill":       fill.Price,
			"stopLoss":   pos.StopLoss,
			"takeProfit": pos.TakeProfit,
		})
		// filled and supervised: a failed flatten is retried by the next sweep
		pos.Status = domain.StatusOpen
		t.inFlight = true
		m.mu.Lock()
		m.open[pos.ID] = t
		m.mu.Unlock()
		trade, cerr := m.closePosition(ctx, t, fill.Price, domain.CloseReasonUnknown, now)
		if cerr != nil {
			return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrUnprotectedPosition, cerr)
		}
		return nil, &FlattenedError{Trade: trade}
	}

	pos.Status = domain.StatusOpen
	m.mu.Lock()
	m.open[pos.ID] = t
	snapshot := *pos
	m.mu.Unlock()

	m.logger.Info(ctx, "Position opened", map[string]interface{}{
		"positionID": snapshot.ID,
		"symbol":     snapshot.Symbol,
		"side":       snapshot.Side,
		"entry":      snapshot.EntryPrice,
		"qty":        snapshot.Quantity,
		"stopLoss":   snapshot.StopLoss,
		"takeProfit": snapshot.TakeProfit,
		"orderID":    snapshot.EntryOrderID,
	})
	return &snapshot, nil
}

// Sweep evaluates every open position of tick.Symbol. Positions with a close
// in flight are skipped.
func (m *Manager) Sweep(ctx context.Context, tick Tick) SweepResult {
	var res SweepResult
	type pendingClose struct {
		t      *tracked
		reason domain.CloseReason
	}
	var closes []pendingClose

	m.mu.Lock()
	for _, t := range m.sortedLocked(tick.Symbol) {
		if t.inFlight {
			continue
		}
		updateExcursions(t.pos, tick.Price)
		reason, adj := m.evaluate(t.pos, tick)
		if reason != "" {
			t.inFlight = true
			closes = append(closes, pendingClose{t: t, reason: reason})
			continue
		}
		if adj != nil {
			res.Adjustments = append(res.Adjustments, *adj)
		}
	}
	m.mu.Unlock()

	for _, a := range res.Adjustments {
		m.logger.Info(ctx, "Stop adjusted", map[string]interface{}{
			"positionID": a.PositionID,
			"kind":       a.Kind,
			"oldStop":    a.OldStop,
			"newStop":    a.NewStop,
		})
	}

	for _, c := range closes {
		trade, err := m.closePosition(ctx, c.t, tick.Price, c.reason, tick.Time)
		if err != nil {
			res.Failures = append(res.Failures, err)
			continue
		}
		res.Closed = append(res.Closed, trade)
	}
	return res
}

func (m *Manager) sortedLocked(symbol string) []*tracked {
	out := make([]*tracked, 0, len(m.open))
	for _, t := range m.open {
		if symbol == "" || t.pos.Symbol == symbol {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].pos.OpenedAt.Equal(out[j].pos.OpenedAt) {
			return out[i].pos.OpenedAt.Before(out[j].pos.OpenedAt)
		}
		return out[i].pos.ID < out[j].pos.ID
	})
	return out
}

// closePosition is the single exit path. The caller must have set
// t.inFlight under m.mu.
func (m *Manager) closePosition(ctx context.Context, t *tracked, price float64, reason domain.CloseReason, now time.Time) (*domain.Trade, error) {
	op := "closePosition"

	m.mu.Lock()
	pos := *t.pos
	m.mu.Unlock()

	fill, err := m.transport.Close(ctx, &pos, price)
	if err == nil && (fill == nil || fill.Price <= 0) {
		err = errors.New("transport returned an empty fill")
	}
	if err != nil {
		m.mu.Lock()
		t.inFlight = false
		t.closeFailures++
		failures := t.closeFailures
		m.mu.Unlock()
		m.logger.Error(ctx, err, op+": Close order failed, position stays open", map[string]interface{}{
			"positionID": pos.ID,
			"reason":     reason,
			"failures":   failures,
		})
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrTransportFailure, err)
	}

	sign := decimal.NewFromFloat(pos.Side.Sign())
	pnl := decimal.NewFromFloat(fill.Price).
		Sub(decimal.NewFromFloat(pos.EntryPrice)).
		Mul(decimal.NewFromFloat(pos.Quantity)).
		Mul(sign)

	m.mu.Lock()
	t.pos.Status = domain.StatusClosed
	delete(m.open, pos.ID)
	m.mu.Unlock()

	state := m.ledger.ApplyTradeResult(pnl)

	exitTime := now
	if exitTime.IsZero() {
		exitTime = fill.FilledAt
	}
	trade := &domain.Trade{
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   fill.Price,
		Quantity:    pos.Quantity,
		PNL:         pnl.InexactFloat64(),
		RiskAmount:  pos.RiskAmount,
		EntryTime:   pos.OpenedAt,
		ExitTime:    exitTime,
		CloseReason: reason,
	}
	if pos.RiskAmount > 0 {
		trade.RMultiple = pnl.Div(decimal.NewFromFloat(pos.RiskAmount)).InexactFloat64()
	}
	if pos.RiskDistance > 0 {
		trade.MaxFavorableR = pos.HighestFavorableExcursion / pos.RiskDistance
		trade.MaxAdverseR = pos.LowestAdverseExcursion / pos.RiskDistance
	}

	m.logger.Info(ctx, "Position closed", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"reason":     reason,
		"exit":       fill.Price,
		"pnl":        trade.PNL,
		"r":          trade.RMultiple,
		"equity":     state.Equity.String(),
	})
	return trade, nil
}

// Restore adopts positions reported by the venue after a restart. Missing
// protection is derived from RiskDistance or RestoreStopFraction. It returns
// the number of positions adopted.
func (m *Manager) Restore(ctx context.Context, positions []*domain.Position, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	adopted := 0
	for _, src := range positions {
		if src == nil || src.EntryPrice <= 0 || src.Quantity <= 0 || !src.Side.Valid() {
			m.logger.Warn(ctx, "Skipping unusable position on restore", map[string]interface{}{"position": fmt.Sprintf("%+v", src)})
			continue
		}
		p := *src
		if p.ID == "" {
			p.ID = utils.NewPositionID()
		}
		if _, exists := m.open[p.ID]; exists {
			continue
		}
		m.protect(&p)
		if p.OpenedAt.IsZero() {
			p.OpenedAt = now
		}
		if p.BestPrice <= 0 {
			p.BestPrice = p.EntryPrice
		}
		p.Status = domain.StatusOpen
		m.open[p.ID] = &tracked{pos: &p}
		adopted++

		m.logger.Info(ctx, "Position restored", map[string]interface{}{
			"positionID": p.ID,
			"symbol":     p.Symbol,
			"side":       p.Side,
			"entry":      p.EntryPrice,
			"stopLoss":   p.StopLoss,
			"takeProfit": p.TakeProfit,
		})
	}
	return adopted
}

func (m *Manager) protect(p *domain.Position) {
	sign := p.Side.Sign()
	if p.RiskDistance <= 0 {
		if d := (p.EntryPrice - p.StopLoss) * sign; p.StopLoss > 0 && d > 0 {
			p.RiskDistance = d
		} else {
			p.RiskDistance = p.EntryPrice * m.cfg.RestoreStopFraction
		}
	}
	if p.StopLoss <= 0 || (p.EntryPrice-p.StopLoss)*sign <= 0 {
		p.StopLoss = p.EntryPrice - p.RiskDistance*sign
	}
	if p.TakeProfit <= 0 || (p.TakeProfit-p.EntryPrice)*sign <= 0 {
		p.TakeProfit = p.EntryPrice + p.RiskDistance*m.cfg.RestoreTakeProfitMultiple*sign
	}
	if p.RiskAmount <= 0 {
		p.RiskAmount = p.Quantity * p.RiskDistance
	}
}

// OpenPositions returns copies of every tracked position.
func (m *Manager) OpenPositions() []*domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.open))
	for _, t := range m.sortedLocked("") {
		p := *t.pos
		out = append(out, &p)
	}
	return out
}

// Count returns the number of tracked positions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}
