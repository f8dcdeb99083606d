package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/internal/adapters/paper"
	"dailyTrader/internal/domain"
	"dailyTrader/internal/filter"
	"dailyTrader/internal/lifecycle"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/risk"
	"dailyTrader/internal/sampler"
	"dailyTrader/internal/state"
)

var day = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// stubStrategy allows both sides and never softens risk.
type stubStrategy struct{}

func (stubStrategy) Name() string                                { return "stub" }
func (stubStrategy) Mode() domain.TradingMode                    { return domain.ModeLearning }
func (stubStrategy) RequiredDataPoints() int                     { return 1 }
func (stubStrategy) RiskMultiplier(domain.RiskState) float64     { return 1 }
func (stubStrategy) Evaluate(context.Context, *domain.MarketSnapshot) *domain.Signal { return nil }
func (stubStrategy) DecisionSpace(*domain.MarketSnapshot) domain.DecisionSpace {
	return domain.DecisionSpace{BuyPossible: true, SellPossible: true}
}

type memSink struct {
	mu      sync.Mutex
	samples []*domain.DecisionSample
}

func (s *memSink) Append(ctx context.Context, sample *domain.DecisionSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *memSink) all() []*domain.DecisionSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.DecisionSample(nil), s.samples...)
}

type memStateRepo struct {
	mu    sync.Mutex
	saved *domain.RiskState
	saves int
}

func (r *memStateRepo) SaveState(ctx context.Context, s domain.RiskState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = &s
	r.saves++
	return nil
}

func (r *memStateRepo) LoadState(ctx context.Context) (*domain.RiskState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved, nil
}

type memTrades struct {
	mu     sync.Mutex
	trades []*domain.Trade
}

func (m *memTrades) CreateTrade(ctx context.Context, t *domain.Trade) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	t.ID = int64(len(m.trades))
	return t.ID, nil
}

func (m *memTrades) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	return nil, nil
}

func (m *memTrades) FindAll(ctx context.Context) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Trade(nil), m.trades...), nil
}

type failingTransport struct{}

func (failingTransport) Execute(context.Context, ports.OrderRequest) (*ports.Fill, error) {
	return nil, errors.New("venue down")
}

func (failingTransport) Close(context.Context, *domain.Position, float64) (*ports.Fill, error) {
	return nil, errors.New("venue down")
}

type fixture struct {
	engine *Engine
	ledger *risk.RiskLedger
	sink   *memSink
	repo   *memStateRepo
	trades *memTrades
}

type fixtureOpts struct {
	initial   domain.RiskState
	limits    risk.Limits
	transport ports.OrderTransport
	filter    ports.SignalFilter
}

func defaultLimits() risk.Limits {
	return risk.Limits{
		MaxDailyLossFraction:     0.03,
		MaxDailyGainFraction:     0.05,
		MaxTradesPerDay:          50,
		MaxOpenPositions:         3,
		MaxTotalExposureFraction: 1.5,
	}
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	if opts.initial.Equity.IsZero() {
		opts.initial = domain.DefaultRiskState(10000, day)
	}
	if opts.transport == nil {
		tr, err := paper.New(paper.Config{Now: func() time.Time { return day }})
		require.NoError(t, err)
		opts.transport = tr
	}
	log := ports.NopLogger{}

	ledger := risk.NewRiskLedger(opts.initial, time.UTC)
	sizer, err := risk.NewPositionSizer(risk.SizingConfig{StopATRMultiple: 1.5, TakeProfitMultiple: 2, MaxExposureFraction: 0.5, QuantityPrecision: 3})
	require.NoError(t, err)
	manager, err := lifecycle.NewManager(lifecycle.DefaultConfig(), opts.transport, ledger, log)
	require.NoError(t, err)
	sink := &memSink{}
	smp, err := sampler.New(sampler.Config{Mode: domain.ModeLearning, NoSignalKeepEvery: 10}, sink, log)
	require.NoError(t, err)
	repo := &memStateRepo{}
	store, err := state.NewStore(repo, 10000, log)
	require.NoError(t, err)
	trades := &memTrades{}

	deps := EngineDeps{
		Strategy:     stubStrategy{},
		Sizer:        sizer,
		Validator:    risk.NewTradeValidator(opts.limits),
		Ledger:       ledger,
		Manager:      manager,
		Sampler:      smp,
		Filter:       opts.filter,
		Store:        store,
		Trades:       trades,
		Logger:       log,
		RiskPerTrade: 0.02,
	}
	if rec, ok := opts.transport.(ports.PositionRecorder); ok {
		deps.Recorder = rec
	}
	e, err := NewEngine(deps)
	require.NoError(t, err)
	return &fixture{engine: e, ledger: ledger, sink: sink, repo: repo, trades: trades}
}

func snap(symbol string, price, atr float64, at time.Time) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol: symbol,
		Time:   at,
		Price:  price,
		Indicators: domain.Indicators{
			EMAFast: price * 1.001,
			EMASlow: price,
			RSI:     55,
			ATR:     atr,
		},
		Regime:     domain.RegimeRanging,
		Volatility: domain.VolatilityMedium,
	}
}

func buy(price float64) *domain.Signal {
	return &domain.Signal{Side: domain.Buy, ReferencePrice: price, Strength: 0.5, Reason: "test"}
}

func TestNewEngine_RequiresDeps(t *testing.T) {
	_, err := NewEngine(EngineDeps{})
	assert.Error(t, err)
}

func TestEngine_DailyTradeCountRejectionsAreSampled(t *testing.T) {
	initial := domain.DefaultRiskState(10000, day)
	initial.TradesToday = 3
	limits := defaultLimits()
	limits.MaxTradesPerDay = 3
	f := newFixture(t, fixtureOpts{initial: initial, limits: limits})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := f.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day.Add(time.Duration(i)*time.Minute)), buy(50000))
		assert.Equal(t, domain.OutcomeRejectedByLimits, res.Outcome)
		assert.Equal(t, domain.ActionHold, res.Action)
		require.NotNil(t, res.Rejection)
		assert.Equal(t, risk.RejectDailyTradeCount, res.Rejection.Code)
		assert.True(t, res.SampleKept)
	}

	samples := f.sink.all()
	require.Len(t, samples, 3)
	for _, s := range samples {
		assert.Equal(t, domain.OutcomeRejectedByLimits, s.Outcome)
		assert.Equal(t, domain.ActionHold, s.ExecutedAction)
		assert.Equal(t, domain.ActionBuy, s.ProposedAction)
		assert.Contains(t, s.Reason, "HOLD: ")
		assert.Contains(t, s.Reason, string(risk.RejectDailyTradeCount))
	}
	assert.Equal(t, 0, len(f.engine.OpenPositions()))
}

func TestEngine_OpenSuperviseAndClose(t *testing.T) {
	f := newFixture(t, fixtureOpts{limits: defaultLimits()})
	ctx := context.Background()

	res := f.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	require.Equal(t, domain.OutcomeAccepted, res.Outcome, res.Reason)
	require.NotNil(t, res.Opened)
	assert.Equal(t, domain.ActionBuy, res.Action)
	assert.Equal(t, domain.ActionBuy, res.Sample.ExecutedAction)
	// 200 risk / 300 stop = 0.666 BTC, clamped to 5000 notional
	assert.Equal(t, 0.1, res.Opened.Quantity)
	assert.Equal(t, 49700.0, res.Opened.StopLoss)
	assert.Equal(t, 50600.0, res.Opened.TakeProfit)
	assert.Empty(t, res.Closed)

	// no new signal, price through the target
	res = f.engine.OnTick(ctx, snap("BTCUSDT", 50700, 200, day.Add(time.Minute)), nil)
	assert.Equal(t, domain.OutcomeNoSignal, res.Outcome)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, domain.CloseReasonTakeProfit, res.Closed[0].CloseReason)
	assert.InDelta(t, 70.0, res.Closed[0].PNL, 1e-9)

	st := f.engine.State()
	assert.Equal(t, "10070", st.Equity.String())
	assert.Equal(t, 1, st.TradesToday)
	assert.Empty(t, f.engine.OpenPositions())

	all, _ := f.trades.FindAll(ctx)
	assert.Len(t, all, 1)
	require.NotNil(t, f.repo.saved, "state is saved after a close")
	assert.True(t, f.repo.saved.Equal(st))
}

func TestEngine_NoSignalIsDownSampled(t *testing.T) {
	f := newFixture(t, fixtureOpts{limits: defaultLimits()})
	ctx := context.Background()

	kept := 0
	for i := 0; i < 20; i++ {
		res := f.engine.OnTick(ctx, snap("ETHUSDT", 3000, 30, day.Add(time.Duration(i)*time.Minute)), nil)
		assert.Equal(t, domain.OutcomeNoSignal, res.Outcome)
		require.NotNil(t, res.Sample, "a sample is built even when not kept")
		assert.Equal(t, "HOLD: no signal from strategy", res.Reason)
		if res.SampleKept {
			kept++
		}
	}
	assert.Equal(t, 2, kept)
	assert.Len(t, f.sink.all(), 2)
}

func TestEngine_InvalidSizingIsRejectedByRisk(t *testing.T) {
	f := newFixture(t, fixtureOpts{limits: defaultLimits()})

	res := f.engine.OnTick(context.Background(), snap("BTCUSDT", 50000, 0, day), buy(50000))
	assert.Equal(t, domain.OutcomeRejectedByRisk, res.Outcome)
	assert.Contains(t, res.Reason, ports.ErrInvalidSizingInput.Error())
	assert.Nil(t, res.Rejection)
	assert.Nil(t, res.Opened)
}

func TestEngine_FilterVeto(t *testing.T) {
	flt := filter.NewRuleFilter(filter.Config{BlockedRegimes: []domain.MarketRegime{domain.RegimeChaotic}})
	f := newFixture(t, fixtureOpts{limits: defaultLimits(), filter: flt})

	s := snap("BTCUSDT", 50000, 200, day)
	s.Regime = domain.RegimeChaotic
	res := f.engine.OnTick(context.Background(), s, buy(50000))
	assert.Equal(t, domain.OutcomeRejectedByFilters, res.Outcome)
	assert.Contains(t, res.Reason, "chaotic")
	assert.Empty(t, f.engine.OpenPositions())
}

func TestEngine_ExecutionFailureIsNotRetried(t *testing.T) {
	f := newFixture(t, fixtureOpts{limits: defaultLimits(), transport: failingTransport{}})

	res := f.engine.OnTick(context.Background(), snap("BTCUSDT", 50000, 200, day), buy(50000))
	assert.Equal(t, domain.OutcomeRejectedByExecution, res.Outcome)
	assert.Equal(t, domain.ActionHold, res.Sample.ExecutedAction)
	assert.Empty(t, f.engine.OpenPositions())
	assert.Equal(t, 0, f.engine.State().TradesToday)
}

func TestEngine_DayRollResetsCounters(t *testing.T) {
	initial := domain.DefaultRiskState(10000, day.Add(-24*time.Hour))
	initial.TradesToday = 3
	limits := defaultLimits()
	limits.MaxTradesPerDay = 3
	f := newFixture(t, fixtureOpts{initial: initial, limits: limits})

	res := f.engine.OnTick(context.Background(), snap("BTCUSDT", 50000, 200, day), buy(50000))
	assert.Equal(t, domain.OutcomeAccepted, res.Outcome, res.Reason)
	st := f.engine.State()
	assert.Equal(t, "2026-03-14", st.LastResetDate)
	assert.Equal(t, 0, st.TradesToday, "opening does not count; closing does")
	require.NotNil(t, f.repo.saved)
	assert.Equal(t, "2026-03-14", f.repo.saved.LastResetDate)
}

func TestEngine_RestoreFromPaperBook(t *testing.T) {
	f := newFixture(t, fixtureOpts{limits: defaultLimits()})
	ctx := context.Background()

	res := f.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	require.Equal(t, domain.OutcomeAccepted, res.Outcome)

	src := f.engine.recorder.(ports.PositionSource)
	n, err := f.engine.Restore(ctx, src, []string{"BTCUSDT"}, day)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already supervised positions are not adopted twice")
	assert.Len(t, f.engine.OpenPositions(), 1)
}

func TestEngine_SampleReasonsCarryNoAbsoluteValues(t *testing.T) {
	ctx := context.Background()

	accepted := newFixture(t, fixtureOpts{limits: defaultLimits()})
	res := accepted.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	require.Equal(t, domain.OutcomeAccepted, res.Outcome, res.Reason)
	assert.Equal(t, "BUY accepted: risk 2.00% of equity (x1.00), notional clamped to cap: test", res.Reason)

	losing := domain.DefaultRiskState(10000, day)
	losing.Equity = decimal.NewFromInt(9600)
	losing.DailyPnL = decimal.NewFromInt(-400)
	rejected := newFixture(t, fixtureOpts{initial: losing, limits: defaultLimits()})
	res = rejected.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	require.Equal(t, domain.OutcomeRejectedByLimits, res.Outcome)
	assert.Equal(t, "HOLD: BUY rejected: daily_loss_limit: daily loss 4.00% reached limit 3.00%", res.Reason)

	exposure := newFixture(t, fixtureOpts{limits: risk.Limits{MaxTotalExposureFraction: 0.1}})
	res = exposure.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	require.Equal(t, domain.OutcomeRejectedByRisk, res.Outcome)
	assert.Equal(t, "HOLD: BUY rejected: exposure_cap: total exposure 50.00% of equity would exceed cap 10.00%", res.Reason)

	sizing := newFixture(t, fixtureOpts{limits: defaultLimits()})
	res = sizing.engine.OnTick(ctx, snap("BTCUSDT", 50000, 0, day), buy(50000))
	require.Equal(t, domain.OutcomeRejectedByRisk, res.Outcome)

	venue := newFixture(t, fixtureOpts{limits: defaultLimits(), transport: failingTransport{}})
	res = venue.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	require.Equal(t, domain.OutcomeRejectedByExecution, res.Outcome)

	var samples []*domain.DecisionSample
	for _, f := range []*fixture{accepted, rejected, exposure, sizing, venue} {
		samples = append(samples, f.sink.all()...)
	}
	require.Len(t, samples, 5)
	for _, s := range samples {
		require.NoError(t, sampler.ValidateSample(s))
		for _, absolute := range []string{"50000", "49700", "10000", "9600", "400", "300", "5000", "0.1 "} {
			assert.NotContains(t, s.Reason, absolute, "sample %s", s.Outcome)
		}
	}
}

// slippingTransport fills entries at a fixed price and closes above the
// requested price.
type slippingTransport struct {
	fillPrice float64
}

func (s slippingTransport) Execute(ctx context.Context, req ports.OrderRequest) (*ports.Fill, error) {
	return &ports.Fill{OrderID: "slip-1", Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity, Price: s.fillPrice, FilledAt: day}, nil
}

func (s slippingTransport) Close(ctx context.Context, pos *domain.Position, price float64) (*ports.Fill, error) {
	return &ports.Fill{OrderID: "slip-2", Symbol: pos.Symbol, Quantity: pos.Quantity, Price: price + 10, FilledAt: day}, nil
}

func TestEngine_FlattenedEntryIsStored(t *testing.T) {
	f := newFixture(t, fixtureOpts{limits: defaultLimits(), transport: slippingTransport{fillPrice: 200}})
	ctx := context.Background()

	res := f.engine.OnTick(ctx, snap("BTCUSDT", 50000, 200, day), buy(50000))
	assert.Equal(t, domain.OutcomeRejectedByExecution, res.Outcome)
	assert.Equal(t, "HOLD: BUY execution failed: fill left position unprotected, flattened", res.Reason)
	assert.Nil(t, res.Opened)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, domain.CloseReasonUnknown, res.Closed[0].CloseReason)
	assert.InDelta(t, 1.0, res.Closed[0].PNL, 1e-9)

	all, err := f.trades.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "trade history matches the ledger")
	assert.Equal(t, res.Closed[0].PositionID, all[0].PositionID)

	st := f.engine.State()
	assert.Equal(t, "10001", st.Equity.String())
	assert.Equal(t, 1, st.TradesToday)
	require.NotNil(t, f.repo.saved)
	assert.True(t, f.repo.saved.Equal(st))
	assert.Empty(t, f.engine.OpenPositions())
}
