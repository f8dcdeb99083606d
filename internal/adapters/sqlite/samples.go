package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// Append implements ports.DecisionSink. Samples are immutable, so a
// duplicate ID is an error.
func (r *Repository) Append(ctx context.Context, s *domain.DecisionSample) error {
	op := "Append"
	const query = `
	INSERT INTO decision_samples (id, timestamp, symbol, mode, features, decision_space,
	                              proposed_action, executed_action, outcome, reason, market_regime, volatility)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	features, err := json.Marshal(s.Features)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	space := make([]string, len(s.DecisionSpace))
	for i, a := range s.DecisionSpace {
		space[i] = string(a)
	}

	_, err = r.db.ExecContext(ctx, query,
		s.ID, s.Timestamp, s.Symbol, s.Mode, string(features), strings.Join(space, ","),
		s.ProposedAction, s.ExecutedAction, s.Outcome, s.Reason, s.MarketRegime, s.Volatility)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrUpdateFailed, err)
	}
	return nil
}

// FindSamples returns up to limit samples in ID order, which is generation
// order. A limit <= 0 returns everything.
func (r *Repository) FindSamples(ctx context.Context, limit int) ([]*domain.DecisionSample, error) {
	op := "FindSamples"
	query := `
	SELECT id, timestamp, symbol, mode, features, decision_space, proposed_action,
	       executed_action, outcome, reason, market_regime, volatility
	FROM decision_samples ORDER BY id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	samples := make([]*domain.DecisionSample, 0)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w", op, err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return samples, nil
}

// CountByOutcome summarises the decision log.
func (r *Repository) CountByOutcome(ctx context.Context) (map[domain.Outcome]int, error) {
	op := "CountByOutcome"
	rows, err := r.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM decision_samples GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[domain.Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("%s failed: %w", op, err)
		}
		counts[domain.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

func scanSample(s scanner) (*domain.DecisionSample, error) {
	sample := &domain.DecisionSample{}
	var mode, features, space, proposed, executed, outcome, regime, volatility string
	err := s.Scan(&sample.ID, &sample.Timestamp, &sample.Symbol, &mode, &features, &space,
		&proposed, &executed, &outcome, &sample.Reason, &regime, &volatility)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &sample.Features); err != nil {
		return nil, fmt.Errorf("sample %s features: %w", sample.ID, err)
	}
	for _, a := range strings.Split(space, ",") {
		if a != "" {
			sample.DecisionSpace = append(sample.DecisionSpace, domain.Action(a))
		}
	}
	sample.Mode = domain.TradingMode(mode)
	sample.ProposedAction = domain.Action(proposed)
	sample.ExecutedAction = domain.Action(executed)
	sample.Outcome = domain.Outcome(outcome)
	sample.MarketRegime = domain.MarketRegime(regime)
	sample.Volatility = domain.VolatilityLevel(volatility)
	return sample, nil
}
