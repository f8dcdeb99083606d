package sqlite

import (
	"context"
	"fmt"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// SavePosition inserts or replaces a paper position.
func (r *Repository) SavePosition(ctx context.Context, pos *domain.Position) error {
	const query = `
	INSERT OR REPLACE INTO paper_positions (id, symbol, side, entry_price, quantity, stop_loss,
	                                        take_profit, risk_amount, risk_distance, opened_at, entry_order_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		pos.ID, pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity, pos.StopLoss,
		pos.TakeProfit, pos.RiskAmount, pos.RiskDistance, pos.OpenedAt, pos.EntryOrderID)
	if err != nil {
		return fmt.Errorf("failed to save paper position %s: %w: %w", pos.ID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Paper position saved", map[string]interface{}{"positionID": pos.ID, "symbol": pos.Symbol})
	return nil
}

// DeletePosition removes a paper position.
func (r *Repository) DeletePosition(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM paper_positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper position %s: %w: %w", id, ports.ErrUpdateFailed, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for paper position %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("paper position %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

// FindOpenPositions returns every paper position, oldest first.
func (r *Repository) FindOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	const query = `
	SELECT id, symbol, side, entry_price, quantity, stop_loss, take_profit,
	       risk_amount, risk_distance, opened_at, entry_order_id
	FROM paper_positions ORDER BY opened_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query paper positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper position rows: %w", err)
	}
	return positions, nil
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var side string
	err := s.Scan(&p.ID, &p.Symbol, &side, &p.EntryPrice, &p.Quantity, &p.StopLoss,
		&p.TakeProfit, &p.RiskAmount, &p.RiskDistance, &p.OpenedAt, &p.EntryOrderID)
	if err != nil {
		return nil, err
	}
	p.Side = domain.OrderSide(side)
	p.Status = domain.StatusOpen
	p.BestPrice = p.EntryPrice
	return p, nil
}
