package backtesting

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"dailyTrader/config"
	"dailyTrader/internal/adapters/paper"
	"dailyTrader/internal/app"
	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/strategy/analytics"
)

// maxWindow caps the kline window handed to the snapshot builder, matching
// the live service cache.
const maxWindow = 500

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Engine      config.EngineConfig
	Symbol      string
	SlippageBps float64
	StartTime   time.Time // Optional; klines closing before it are warm-up only
	EndTime     time.Time // Optional; klines closing after it are ignored
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Symbol      string
	Strategy    string
	Ticks       int // snapshots evaluated
	Trades      []*domain.Trade
	Outcomes    map[domain.Outcome]int // every tick, before down-sampling
	Samples     []*domain.DecisionSample
	FinalState  domain.RiskState
	OpenAtEnd   int
	Metrics     *analytics.PerformanceMetrics
	SharpeRatio float64
}

// sampleLog keeps decision samples in memory.
type sampleLog struct {
	mu      sync.Mutex
	samples []*domain.DecisionSample
}

func (l *sampleLog) Append(ctx context.Context, s *domain.DecisionSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, s)
	return nil
}

// Backtest replays klines through a paper-traded Engine built from cfg.
func Backtest(ctx context.Context, cfg BacktestConfig, klines []*domain.Kline, logger ports.Logger) (*BacktestResult, error) {
	op := "Backtest"
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%s failed: symbol is required", op)
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s failed: no klines", op)
	}

	var clock time.Time
	transport, err := paper.New(paper.Config{
		SlippageBps: cfg.SlippageBps,
		Logger:      logger,
		Now:         func() time.Time { return clock },
	})
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	samples := &sampleLog{}
	wired, err := app.BuildEngine(ctx, cfg.Engine, app.EngineOptions{
		Transport: transport,
		Samples:   samples,
		Logger:    logger,
		Start:     klines[0].CloseTime,
	})
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	engine, builder := wired.Engine, wired.Builder

	required := builder.RequiredDataPoints()
	if r := engine.Strategy().RequiredDataPoints(); r > required {
		required = r
	}
	if len(klines) < required {
		return nil, fmt.Errorf("%s failed: not enough data points for strategy: need %d, got %d", op, required, len(klines))
	}

	result := &BacktestResult{
		Symbol:   cfg.Symbol,
		Strategy: engine.Strategy().Name(),
		Outcomes: make(map[domain.Outcome]int),
	}

	// Klines are assumed to be sorted by open time.
	for i := required - 1; i < len(klines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrContextCanceled, err)
		}
		k := klines[i]
		if !cfg.StartTime.IsZero() && k.CloseTime.Before(cfg.StartTime) {
			continue
		}
		if !cfg.EndTime.IsZero() && k.CloseTime.After(cfg.EndTime) {
			break
		}

		start := i + 1 - maxWindow
		if start < 0 {
			start = 0
		}
		snapshot, err := builder.Build(cfg.Symbol, klines[start:i+1])
		if err != nil {
			return nil, fmt.Errorf("%s failed at %s: %w", op, k.CloseTime.Format(time.RFC3339), err)
		}
		clock = snapshot.Time

		res := engine.Evaluate(ctx, snapshot)
		result.Ticks++
		result.Outcomes[res.Outcome]++
		result.Trades = append(result.Trades, res.Closed...)
	}

	result.FinalState = engine.State()
	result.OpenAtEnd = len(engine.OpenPositions())
	result.Samples = samples.samples
	result.Metrics = analytics.AnalyzePerformance(result.Trades, cfg.Engine.InitialCapital)
	result.SharpeRatio = calculateSharpeRatio(tradeReturns(result.Trades, cfg.Engine.InitialCapital))

	logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"symbol":   cfg.Symbol,
		"ticks":    result.Ticks,
		"trades":   len(result.Trades),
		"openEnd":  result.OpenAtEnd,
		"equity":   result.FinalState.Equity.String(),
		"expectR":  result.Metrics.ExpectancyR,
		"drawdown": result.Metrics.MaxDrawdown,
	})
	return result, nil
}

// tradeReturns converts each trade's PNL into a return on the equity it was
// taken from.
func tradeReturns(trades []*domain.Trade, initial float64) []float64 {
	returns := make([]float64, 0, len(trades))
	equity := initial
	for _, t := range trades {
		if equity > 0 {
			returns = append(returns, t.PNL/equity)
		}
		equity += t.PNL
	}
	return returns
}

// calculateSharpeRatio is mean over sample standard deviation of per-trade
// returns, with a zero risk-free rate.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}
