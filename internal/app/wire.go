package app

import (
	"context"
	"fmt"
	"time"

	"dailyTrader/config"
	"dailyTrader/internal/domain"
	"dailyTrader/internal/filter"
	"dailyTrader/internal/lifecycle"
	"dailyTrader/internal/market"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/risk"
	"dailyTrader/internal/sampler"
	"dailyTrader/internal/state"
	"dailyTrader/internal/strategy"
)

// EngineOptions are the collaborators BuildEngine cannot derive from config.
// Only Transport is required.
type EngineOptions struct {
	Transport ports.OrderTransport
	State     ports.StateRepository // nil keeps the ledger in memory only
	Trades    ports.TradeRepository
	Samples   ports.DecisionSink
	Logger    ports.Logger
	Start     time.Time // Seeds a fresh ledger; time.Now when zero
}

// Wired is an engine together with the pieces that surround it at runtime.
type Wired struct {
	Engine  *Engine
	Builder *market.SnapshotBuilder
	Loaded  state.LoadResult
}

// BuildEngine assembles an Engine from validated engine config. When a state
// repository is given the ledger resumes from the persisted snapshot.
func BuildEngine(ctx context.Context, cfg config.EngineConfig, opts EngineOptions) (*Wired, error) {
	op := "BuildEngine"
	if opts.Transport == nil {
		return nil, fmt.Errorf("%s failed: order transport is required", op)
	}
	if opts.Logger == nil {
		opts.Logger = ports.NopLogger{}
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	builder, err := market.NewSnapshotBuilder(cfg.Market)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	strat, err := strategy.New(cfg.Mode, cfg.StrategyConfig(), builder.RequiredDataPoints(), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	sizer, err := risk.NewPositionSizer(cfg.Sizing)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	loaded := state.LoadResult{
		State:  domain.DefaultRiskState(cfg.InitialCapital, opts.Start.In(loc)),
		Source: state.SourceDefault,
	}
	var store *state.Store
	if opts.State != nil {
		if store, err = state.NewStore(opts.State, cfg.InitialCapital, opts.Logger); err != nil {
			return nil, fmt.Errorf("%s failed: %w", op, err)
		}
		if loaded, err = store.Load(ctx); err != nil {
			return nil, fmt.Errorf("%s failed: %w", op, err)
		}
	}
	ledger := risk.NewRiskLedger(loaded.State, loc)

	manager, err := lifecycle.NewManager(cfg.Lifecycle, opts.Transport, ledger, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	smp, err := sampler.New(cfg.SamplerConfig(), opts.Samples, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	deps := EngineDeps{
		Strategy:     strat,
		Sizer:        sizer,
		Validator:    risk.NewTradeValidator(cfg.Limits),
		Ledger:       ledger,
		Manager:      manager,
		Sampler:      smp,
		Store:        store,
		Trades:       opts.Trades,
		Logger:       opts.Logger,
		RiskPerTrade: cfg.RiskPerTrade,
	}
	if cfg.FilterEnabled {
		deps.Filter = filter.NewRuleFilter(cfg.Filter)
	}
	if rec, ok := opts.Transport.(ports.PositionRecorder); ok {
		deps.Recorder = rec
	}
	engine, err := NewEngine(deps)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}

	opts.Logger.Info(ctx, "Engine assembled", map[string]interface{}{
		"mode":        cfg.Mode,
		"strategy":    strat.Name(),
		"equity":      loaded.State.Equity.String(),
		"stateSource": loaded.Source,
		"corrupted":   loaded.Corrupted,
		"filter":      cfg.FilterEnabled,
	})
	return &Wired{Engine: engine, Builder: builder, Loaded: loaded}, nil
}
