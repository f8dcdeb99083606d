package lifecycle

import "dailyTrader/internal/domain"

func updateExcursions(p *domain.Position, price float64) {
	move := p.FavorableMove(price)
	if move > p.HighestFavorableExcursion {
		p.HighestFavorableExcursion = move
	}
	if move < p.LowestAdverseExcursion {
		p.LowestAdverseExcursion = move
	}
	if p.BestPrice <= 0 || (price-p.BestPrice)*p.Side.Sign() > 0 {
		p.BestPrice = price
	}
}

func stopHit(p *domain.Position, price float64) bool {
	if p.Side == domain.Sell {
		return price >= p.StopLoss
	}
	return price <= p.StopLoss
}

func targetHit(p *domain.Position, price float64) bool {
	if p.Side == domain.Sell {
		return price <= p.TakeProfit
	}
	return price >= p.TakeProfit
}

// tightens reports whether stop is closer to the market than the current one.
func tightens(p *domain.Position, stop float64) bool {
	return (stop-p.StopLoss)*p.Side.Sign() > 0
}

// protective reports whether stop still sits on the losing side of price.
func protective(p *domain.Position, stop, price float64) bool {
	return stop > 0 && (price-stop)*p.Side.Sign() > 0
}

// evaluate applies the exit rules in precedence order: time stop, stop loss,
// take profit, trailing stop, breakeven. The first rule that closes or
// adjusts the position wins. Must be called with m.mu held.
func (m *Manager) evaluate(p *domain.Position, tick Tick) (domain.CloseReason, *Adjustment) {
	if tick.Time.Sub(p.OpenedAt) >= m.cfg.MaxHoldDuration {
		return domain.CloseReasonTimeStop, nil
	}
	if stopHit(p, tick.Price) {
		return domain.CloseReasonStopLoss, nil
	}
	if targetHit(p, tick.Price) {
		return domain.CloseReasonTakeProfit, nil
	}
	if adj := m.trail(p, tick); adj != nil {
		return "", adj
	}
	if adj := m.breakeven(p, tick.Price); adj != nil {
		return "", adj
	}
	return "", nil
}

func (m *Manager) trail(p *domain.Position, tick Tick) *Adjustment {
	if m.cfg.TrailArmR <= 0 || p.UnrealizedR(tick.Price) < m.cfg.TrailArmR {
		return nil
	}
	var dist float64
	switch {
	case tick.ATR > 0 && m.cfg.TrailATRMultiple > 0:
		dist = tick.ATR * m.cfg.TrailATRMultiple
	case m.cfg.TrailRMultiple > 0:
		dist = p.RiskDistance * m.cfg.TrailRMultiple
	}
	if dist <= 0 {
		return nil
	}
	candidate := p.BestPrice - dist*p.Side.Sign()
	if !tightens(p, candidate) || !protective(p, candidate, tick.Price) {
		return nil
	}
	adj := &Adjustment{PositionID: p.ID, Symbol: p.Symbol, Kind: AdjustTrailing, OldStop: p.StopLoss, NewStop: candidate}
	p.StopLoss = candidate
	p.TrailingArmed = true
	return adj
}

func (m *Manager) breakeven(p *domain.Position, price float64) *Adjustment {
	if m.cfg.BreakevenArmR <= 0 || p.BreakevenArmed || p.UnrealizedR(price) < m.cfg.BreakevenArmR {
		return nil
	}
	p.BreakevenArmed = true
	candidate := p.EntryPrice * (1 + m.cfg.BreakevenBuffer*p.Side.Sign())
	if !tightens(p, candidate) || !protective(p, candidate, price) {
		return nil
	}
	adj := &Adjustment{PositionID: p.ID, Symbol: p.Symbol, Kind: AdjustBreakeven, OldStop: p.StopLoss, NewStop: candidate}
	p.StopLoss = candidate
	return adj
}
