package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// Source says where a loaded snapshot came from.
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceDefault   Source = "default"
)

// LoadResult is the outcome of Store.Load.
type LoadResult struct {
	State     domain.RiskState
	Source    Source
	Corrupted bool // a snapshot existed but failed validation
}

// Store validates ledger snapshots on their way to and from a repository.
type Store struct {
	repo          ports.StateRepository
	initialEquity float64
	logger        ports.Logger
	now           func() time.Time
}

// NewStore creates a store. initialEquity seeds the default state.
func NewStore(repo ports.StateRepository, initialEquity float64, logger ports.Logger) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("state repository is required")
	}
	if initialEquity <= 0 {
		return nil, fmt.Errorf("initial equity must be positive")
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Store{repo: repo, initialEquity: initialEquity, logger: logger, now: time.Now}, nil
}

// Save stamps and persists s.
func (st *Store) Save(ctx context.Context, s domain.RiskState) error {
	op := "Save"
	if err := Validate(s); err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	s.SavedAt = st.now().UTC()
	if err := st.repo.SaveState(ctx, s); err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	return nil
}

// Load returns the persisted snapshot, or a default state when nothing was
// saved or the saved snapshot cannot be trusted.
func (st *Store) Load(ctx context.Context) (LoadResult, error) {
	op := "Load"
	def := LoadResult{State: domain.DefaultRiskState(st.initialEquity, st.now().UTC()), Source: SourceDefault}

	s, err := st.repo.LoadState(ctx)
	if err != nil {
		if errors.Is(err, ports.ErrStateCorruption) {
			st.logger.Warn(ctx, op+": Stored state is unreadable, using defaults", map[string]interface{}{"error": err.Error()})
			def.Corrupted = true
			return def, nil
		}
		return LoadResult{}, fmt.Errorf("%s failed: %w", op, err)
	}
	if s == nil {
		st.logger.Info(ctx, "No saved state, starting fresh", map[string]interface{}{"equity": st.initialEquity})
		return def, nil
	}
	if verr := Validate(*s); verr != nil {
		st.logger.Warn(ctx, op+": Stored state failed validation, using defaults", map[string]interface{}{"error": verr.Error()})
		def.Corrupted = true
		return def, nil
	}

	st.logger.Info(ctx, "Risk state restored", map[string]interface{}{
		"equity":      s.Equity.String(),
		"dailyPnL":    s.DailyPnL.String(),
		"tradesToday": s.TradesToday,
		"savedAt":     s.SavedAt,
	})
	return LoadResult{State: *s, Source: SourcePersisted}, nil
}

// Validate checks a snapshot for values the ledger could not have produced.
func Validate(s domain.RiskState) error {
	var errs []string
	if !s.InitialEquity.IsPositive() {
		errs = append(errs, "initial equity must be positive")
	}
	if !s.Equity.IsPositive() {
		errs = append(errs, "equity must be positive")
	}
	if !s.PeakEquity.IsPositive() {
		errs = append(errs, "peak equity must be positive")
	}
	if s.PeakEquity.LessThan(s.Equity) {
		errs = append(errs, "peak equity below equity")
	}
	if s.MaxDrawdown < 0 || s.MaxDrawdown > 1 || math.IsNaN(s.MaxDrawdown) {
		errs = append(errs, "max drawdown must be within [0, 1]")
	}
	if s.TradesToday < 0 {
		errs = append(errs, "trades today cannot be negative")
	}
	if _, err := time.Parse(domain.DateLayout, s.LastResetDate); err != nil {
		errs = append(errs, fmt.Sprintf("last reset date %q is not a date", s.LastResetDate))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrStateCorruption, strings.Join(errs, "; "))
	}
	return nil
}
