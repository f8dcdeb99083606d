package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/lifecycle"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/risk"
	"dailyTrader/internal/sampler"
	"dailyTrader/internal/state"
)

// TickResult is everything one evaluation tick did.
type TickResult struct {
	Symbol      string
	Action      domain.Action // BUY or SELL when a position was opened, HOLD otherwise
	Outcome     domain.Outcome
	Reason      string
	Opened      *domain.Position
	Closed      []*domain.Trade
	Adjustments []lifecycle.Adjustment
	Sample      *domain.DecisionSample
	SampleKept  bool
	Rejection   *risk.ValidationRejection // set for rejected_by_limits and most rejected_by_risk outcomes
	Failures    []error                   // closes that failed and will be retried
}

// EngineDeps are the collaborators of an Engine. Filter, Store, Trades and
// Recorder are optional.
type EngineDeps struct {
	Strategy     ports.Strategy
	Sizer        *risk.PositionSizer
	Validator    *risk.TradeValidator
	Ledger       *risk.RiskLedger
	Manager      *lifecycle.Manager
	Sampler      *sampler.Sampler
	Filter       ports.SignalFilter
	Store        *state.Store
	Trades       ports.TradeRepository
	Recorder     ports.PositionRecorder
	Logger       ports.Logger
	RiskPerTrade float64 // Base fraction of equity risked per trade
}

// Engine runs the per-tick pipeline: day roll, sizing, sampling, filtering,
// validation, execution, lifecycle sweep and persistence.
type Engine struct {
	strategy     ports.Strategy
	sizer        *risk.PositionSizer
	validator    *risk.TradeValidator
	ledger       *risk.RiskLedger
	manager      *lifecycle.Manager
	sampler      *sampler.Sampler
	filter       ports.SignalFilter
	store        *state.Store
	trades       ports.TradeRepository
	recorder     ports.PositionRecorder
	logger       ports.Logger
	riskPerTrade float64

	// entryMu serialises validate + execute + register across symbols.
	entryMu sync.Mutex

	symMu   sync.Mutex
	symbols map[string]*sync.Mutex
}

// NewEngine validates deps and returns an engine.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Strategy == nil || deps.Sizer == nil || deps.Validator == nil || deps.Ledger == nil ||
		deps.Manager == nil || deps.Sampler == nil || deps.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Engine")
	}
	if deps.RiskPerTrade <= 0 || deps.RiskPerTrade >= 1 {
		return nil, fmt.Errorf("risk per trade must be in (0, 1), got %v", deps.RiskPerTrade)
	}
	return &Engine{
		strategy:     deps.Strategy,
		sizer:        deps.Sizer,
		validator:    deps.Validator,
		ledger:       deps.Ledger,
		manager:      deps.Manager,
		sampler:      deps.Sampler,
		filter:       deps.Filter,
		store:        deps.Store,
		trades:       deps.Trades,
		recorder:     deps.Recorder,
		logger:       deps.Logger,
		riskPerTrade: deps.RiskPerTrade,
		symbols:      make(map[string]*sync.Mutex),
	}, nil
}

func (e *Engine) lockSymbol(symbol string) func() {
	e.symMu.Lock()
	mu, ok := e.symbols[symbol]
	if !ok {
		mu = &sync.Mutex{}
		e.symbols[symbol] = mu
	}
	e.symMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Strategy returns the strategy the engine was built with.
func (e *Engine) Strategy() ports.Strategy {
	return e.strategy
}

// State returns the current ledger snapshot.
func (e *Engine) State() domain.RiskState {
	return e.ledger.Snapshot()
}

// OpenPositions returns copies of the supervised positions.
func (e *Engine) OpenPositions() []*domain.Position {
	return e.manager.OpenPositions()
}

// Evaluate asks the strategy for a signal and runs OnTick with it.
func (e *Engine) Evaluate(ctx context.Context, snapshot *domain.MarketSnapshot) TickResult {
	return e.OnTick(ctx, snapshot, e.strategy.Evaluate(ctx, snapshot))
}

// OnTick processes one market snapshot and an optional entry signal. It
// always produces exactly one decision sample.
func (e *Engine) OnTick(ctx context.Context, snapshot *domain.MarketSnapshot, signal *domain.Signal) TickResult {
	op := "OnTick"
	unlock := e.lockSymbol(snapshot.Symbol)
	defer unlock()

	res := TickResult{Symbol: snapshot.Symbol, Action: domain.ActionHold}

	if e.ledger.RollDay(snapshot.Time) {
		s := e.ledger.Snapshot()
		e.logger.Info(ctx, op+": New trading day, daily counters reset", map[string]interface{}{"date": s.LastResetDate, "equity": s.Equity.String()})
		e.persist(ctx)
	}

	proposed := domain.ActionHold
	if signal != nil {
		proposed = domain.ActionForSide(signal.Side)
	}
	draft := e.sampler.Begin(snapshot.Observation(), proposed, e.strategy.DecisionSpace(snapshot))

	d := e.decide(ctx, snapshot, signal)
	res.Outcome, res.Reason, res.Opened, res.Rejection = d.outcome, d.reason, d.opened, d.rejection
	if res.Opened != nil {
		res.Action = proposed
	}

	sample, kept, err := e.sampler.Finish(ctx, draft, res.Outcome, res.Action, res.Reason)
	if err != nil {
		e.logger.Error(ctx, err, op+": Failed to record decision sample", map[string]interface{}{"symbol": snapshot.Symbol, "outcome": res.Outcome})
	}
	res.Sample, res.SampleKept = sample, kept

	sweep := e.manager.Sweep(ctx, lifecycle.Tick{
		Symbol: snapshot.Symbol,
		Price:  snapshot.Price,
		ATR:    snapshot.Indicators.ATR,
		Time:   snapshot.Time,
	})
	res.Adjustments, res.Failures = sweep.Adjustments, sweep.Failures
	if d.flattened != nil {
		res.Closed = append(res.Closed, d.flattened)
	}
	res.Closed = append(res.Closed, sweep.Closed...)
	e.afterSweep(ctx, sweep)
	return res
}

// decision is the entry half of a tick.
type decision struct {
	outcome   domain.Outcome
	reason    string // relative terms only; absolute figures go to the log
	opened    *domain.Position
	rejection *risk.ValidationRejection
	flattened *domain.Trade // unprotected fill closed on entry
}

// decide runs sizing, filtering, validation and execution for one signal.
func (e *Engine) decide(ctx context.Context, snapshot *domain.MarketSnapshot, signal *domain.Signal) decision {
	op := "decide"
	if signal == nil {
		return decision{outcome: domain.OutcomeNoSignal, reason: sampler.HoldReason("no signal from strategy")}
	}
	action := domain.ActionForSide(signal.Side)

	// entries are serialised so validation sees the open set it will add to
	e.entryMu.Lock()
	defer e.entryMu.Unlock()

	st := e.ledger.Snapshot()
	multiplier := e.strategy.RiskMultiplier(st)
	riskFraction := e.riskPerTrade * multiplier
	trade, err := e.sizer.Size(risk.SizingRequest{
		Symbol:       snapshot.Symbol,
		Signal:       signal,
		Equity:       st.EquityFloat(),
		RiskFraction: riskFraction,
		Volatility:   snapshot.Indicators.ATR,
	})
	if err != nil {
		e.logger.Warn(ctx, op+": Sizing failed", map[string]interface{}{"symbol": snapshot.Symbol, "side": signal.Side, "error": err.Error()})
		return decision{
			outcome: domain.OutcomeRejectedByRisk,
			reason:  sampler.HoldReason("%s rejected: %v", action, ports.ErrInvalidSizingInput),
		}
	}

	if e.filter != nil {
		if ok, why := e.filter.Allow(ctx, signal, snapshot.Observation()); !ok {
			e.logger.Debug(ctx, op+": Signal filtered", map[string]interface{}{"symbol": snapshot.Symbol, "reason": why})
			return decision{outcome: domain.OutcomeRejectedByFilters, reason: sampler.HoldReason("%s filtered: %s", action, why)}
		}
	}

	if rej := e.validator.Validate(trade, st, e.manager.OpenPositions()); rej != nil {
		e.logger.Info(ctx, op+": Trade rejected", map[string]interface{}{
			"symbol":   snapshot.Symbol,
			"side":     signal.Side,
			"code":     rej.Code,
			"reason":   rej.Reason,
			"equity":   st.Equity.String(),
			"dailyPnL": st.DailyPnL.String(),
			"notional": trade.Notional,
		})
		return decision{
			outcome:   rej.Outcome(),
			reason:    sampler.HoldReason("%s rejected: %s", action, rej.Error()),
			rejection: rej,
		}
	}

	pos, err := e.manager.Open(ctx, trade, snapshot.Time)
	if err != nil {
		e.logger.Error(ctx, err, op+": Entry failed", map[string]interface{}{"symbol": snapshot.Symbol, "side": signal.Side, "qty": trade.Quantity})
		d := decision{
			outcome: domain.OutcomeRejectedByExecution,
			reason:  sampler.HoldReason("%s execution failed: %v", action, ports.ErrTransportFailure),
		}
		var flat *lifecycle.FlattenedError
		if errors.As(err, &flat) {
			d.reason = sampler.HoldReason("%s execution failed: fill left position unprotected, flattened", action)
			d.flattened = flat.Trade
			e.storeTrade(ctx, flat.Trade)
			e.persist(ctx)
		} else if errors.Is(err, ports.ErrUnprotectedPosition) {
			d.reason = sampler.HoldReason("%s execution failed: fill left position unprotected, flatten retrying", action)
		}
		return d
	}
	e.record(ctx, pos)

	reason := fmt.Sprintf("%s accepted: risk %.2f%% of equity (x%.2f)", action, riskFraction*100, multiplier)
	if trade.Clamped {
		reason += ", notional clamped to cap"
	}
	if signal.Reason != "" {
		reason += ": " + signal.Reason
	}
	return decision{outcome: domain.OutcomeAccepted, reason: reason, opened: pos}
}

// afterSweep stores closed trades, re-records adjusted stops and persists the
// ledger once per sweep that closed anything.
func (e *Engine) afterSweep(ctx context.Context, sweep lifecycle.SweepResult) {
	for _, tr := range sweep.Closed {
		e.storeTrade(ctx, tr)
	}
	if e.recorder != nil && len(sweep.Adjustments) > 0 {
		adjusted := make(map[string]bool, len(sweep.Adjustments))
		for _, a := range sweep.Adjustments {
			adjusted[a.PositionID] = true
		}
		for _, p := range e.manager.OpenPositions() {
			if adjusted[p.ID] {
				e.record(ctx, p)
			}
		}
	}
	for _, err := range sweep.Failures {
		e.logger.Warn(ctx, "afterSweep: Close failed, retrying next tick", map[string]interface{}{"error": err.Error()})
	}
	if len(sweep.Closed) > 0 {
		e.persist(ctx)
	}
}

func (e *Engine) storeTrade(ctx context.Context, tr *domain.Trade) {
	if e.trades == nil {
		return
	}
	if _, err := e.trades.CreateTrade(ctx, tr); err != nil {
		e.logger.Error(ctx, err, "storeTrade: Failed to store trade", map[string]interface{}{"positionID": tr.PositionID})
	}
}

func (e *Engine) record(ctx context.Context, pos *domain.Position) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, pos); err != nil {
		e.logger.Warn(ctx, "record: Failed to record position levels", map[string]interface{}{"positionID": pos.ID, "error": err.Error()})
	}
}

func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, e.ledger.Snapshot()); err != nil {
		e.logger.Error(ctx, err, "persist: Failed to save risk state")
	}
}

// Persist saves the ledger. Used on graceful shutdown.
func (e *Engine) Persist(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(ctx, e.ledger.Snapshot())
}

// Restore adopts the positions reported by source for symbols.
func (e *Engine) Restore(ctx context.Context, source ports.PositionSource, symbols []string, now time.Time) (int, error) {
	positions, err := source.OpenPositions(ctx, symbols)
	if err != nil {
		return 0, fmt.Errorf("Restore failed: %w", err)
	}
	n := e.manager.Restore(ctx, positions, now)
	for _, p := range e.manager.OpenPositions() {
		e.record(ctx, p)
	}
	return n, nil
}
