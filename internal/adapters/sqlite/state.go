package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// SaveState replaces the single risk_state row. Money is stored as exact
// decimal strings.
func (r *Repository) SaveState(ctx context.Context, s domain.RiskState) error {
	op := "SaveState"
	const query = `
	INSERT OR REPLACE INTO risk_state (id, initial_equity, equity, daily_pnl, trades_today,
	                                   peak_equity, max_drawdown, last_reset_date, saved_at)
	VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.InitialEquity.String(), s.Equity.String(), s.DailyPnL.String(), s.TradesToday,
		s.PeakEquity.String(), s.MaxDrawdown, s.LastResetDate, s.SavedAt)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Risk state saved", map[string]interface{}{"equity": s.Equity.String(), "tradesToday": s.TradesToday})
	return nil
}

// LoadState reads the risk_state row. It returns nil, nil when no state was
// saved yet.
func (r *Repository) LoadState(ctx context.Context) (*domain.RiskState, error) {
	op := "LoadState"
	const query = `
	SELECT initial_equity, equity, daily_pnl, trades_today, peak_equity, max_drawdown, last_reset_date, saved_at
	FROM risk_state WHERE id = 1`

	var initial, equity, dailyPnL, peak string
	s := &domain.RiskState{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&initial, &equity, &dailyPnL, &s.TradesToday, &peak, &s.MaxDrawdown, &s.LastResetDate, &s.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"initial_equity", initial, &s.InitialEquity},
		{"equity", equity, &s.Equity},
		{"daily_pnl", dailyPnL, &s.DailyPnL},
		{"peak_equity", peak, &s.PeakEquity},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w: column %s: %w", op, ports.ErrStateCorruption, f.name, err)
		}
		*f.dst = d
	}
	return s, nil
}
