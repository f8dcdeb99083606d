package paper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// Config holds configuration of the simulated venue.
type Config struct {
	SlippageBps float64            // Adverse slippage applied to every fill, in basis points
	Book        ports.PositionBook // Optional durable record of open positions
	Logger      ports.Logger
	Now         func() time.Time // Clock used for fill times; time.Now when nil
}

// Transport fills every order immediately at the reference price moved
// against the trader by the configured slippage. It implements
// ports.OrderTransport and ports.PositionSource.
type Transport struct {
	mu        sync.Mutex
	slippage  decimal.Decimal
	book      ports.PositionBook
	logger    ports.Logger
	now       func() time.Time
	seq       int64
	positions map[string]*domain.Position
}

// New creates a paper transport.
func New(cfg Config) (*Transport, error) {
	if cfg.SlippageBps < 0 {
		return nil, fmt.Errorf("slippage cannot be negative: %v", cfg.SlippageBps)
	}
	if cfg.Logger == nil {
		cfg.Logger = ports.NopLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Transport{
		slippage:  decimal.NewFromFloat(cfg.SlippageBps).Div(decimal.NewFromInt(10000)),
		book:      cfg.Book,
		logger:    cfg.Logger,
		now:       cfg.Now,
		positions: make(map[string]*domain.Position),
	}, nil
}

// slipped moves price against a trade on the given side.
func (t *Transport) slipped(price float64, side domain.OrderSide) float64 {
	p := decimal.NewFromFloat(price)
	adj := p.Mul(t.slippage)
	if side == domain.Sell {
		return p.Sub(adj).InexactFloat64()
	}
	return p.Add(adj).InexactFloat64()
}

func (t *Transport) nextOrderID() string {
	t.seq++
	return fmt.Sprintf("paper-%d", t.seq)
}

// Execute fills req at its reference price plus slippage.
func (t *Transport) Execute(ctx context.Context, req ports.OrderRequest) (*ports.Fill, error) {
	op := "Execute"
	if req.ReferencePrice <= 0 || req.Quantity <= 0 || !req.Side.Valid() {
		return nil, fmt.Errorf("%s failed: %w: %+v", op, ports.ErrInvalidRequest, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrContextCanceled, err)
	}

	t.mu.Lock()
	fill := &ports.Fill{
		OrderID:  t.nextOrderID(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Price:    t.slipped(req.ReferencePrice, req.Side),
		FilledAt: t.now(),
	}
	pos := &domain.Position{
		ID:           req.ClientOrderID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		EntryPrice:   fill.Price,
		Quantity:     fill.Quantity,
		OpenedAt:     fill.FilledAt,
		Status:       domain.StatusOpen,
		EntryOrderID: fill.OrderID,
		BestPrice:    fill.Price,
	}
	if pos.ID == "" {
		pos.ID = fill.OrderID
	}
	t.positions[pos.ID] = pos
	t.mu.Unlock()

	if t.book != nil {
		if err := t.book.SavePosition(ctx, pos); err != nil {
			t.logger.Error(ctx, err, op+": failed to record paper position", map[string]interface{}{"positionID": pos.ID})
		}
	}
	t.logger.Debug(ctx, op+" filled", map[string]interface{}{"symbol": req.Symbol, "side": req.Side, "qty": fill.Quantity, "price": fill.Price})
	return fill, nil
}

// Close fills the opposite side of pos at marketPrice plus slippage.
func (t *Transport) Close(ctx context.Context, pos *domain.Position, marketPrice float64) (*ports.Fill, error) {
	op := "Close"
	if pos == nil || marketPrice <= 0 {
		return nil, fmt.Errorf("%s failed: %w: no position or price", op, ports.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrContextCanceled, err)
	}

	side := pos.Side.Opposite()
	t.mu.Lock()
	fill := &ports.Fill{
		OrderID:  t.nextOrderID(),
		Symbol:   pos.Symbol,
		Side:     side,
		Quantity: pos.Quantity,
		Price:    t.slipped(marketPrice, side),
		FilledAt: t.now(),
	}
	_, known := t.positions[pos.ID]
	delete(t.positions, pos.ID)
	t.mu.Unlock()

	if !known {
		t.logger.Warn(ctx, op+": closing position unknown to the paper venue", map[string]interface{}{"positionID": pos.ID})
	}
	if t.book != nil {
		if err := t.book.DeletePosition(ctx, pos.ID); err != nil {
			t.logger.Warn(ctx, op+": failed to remove paper position", map[string]interface{}{"positionID": pos.ID, "error": err.Error()})
		}
	}
	return fill, nil
}

// Record stores the protective levels of a supervised position so that a
// restart restores them exactly.
func (t *Transport) Record(ctx context.Context, pos *domain.Position) error {
	t.mu.Lock()
	if _, ok := t.positions[pos.ID]; !ok {
		t.mu.Unlock()
		return nil
	}
	cp := *pos
	t.positions[pos.ID] = &cp
	t.mu.Unlock()

	if t.book == nil {
		return nil
	}
	return t.book.SavePosition(ctx, &cp)
}

// OpenPositions implements ports.PositionSource. With a book the durable
// record wins, so positions survive a restart.
func (t *Transport) OpenPositions(ctx context.Context, symbols []string) ([]*domain.Position, error) {
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	keep := func(p *domain.Position) bool { return len(want) == 0 || want[p.Symbol] }

	out := make([]*domain.Position, 0)
	if t.book != nil {
		stored, err := t.book.FindOpenPositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("OpenPositions failed: %w", err)
		}
		t.mu.Lock()
		for _, p := range stored {
			if _, ok := t.positions[p.ID]; !ok {
				cp := *p
				t.positions[p.ID] = &cp
			}
			if keep(p) {
				out = append(out, p)
			}
		}
		t.mu.Unlock()
		return out, nil
	}

	t.mu.Lock()
	for _, p := range t.positions {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
