package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/market"
	"dailyTrader/internal/ports"
)

const (
	maxKlineCacheSize = 500 // Limit cache size to avoid memory issues
)

// ServiceConfig holds the live-loop settings.
type ServiceConfig struct {
	Symbols         []string
	Interval        string
	ShutdownTimeout time.Duration // How long to wait for streams to close
	HandleSignals   bool          // Cancel on SIGINT/SIGTERM
}

// serverTimeSyncer is implemented by exchange clients that sign requests.
type serverTimeSyncer interface {
	SetServerTime(ctx context.Context) error
}

// TradingService feeds streamed klines into the Engine, one goroutine per symbol.
type TradingService struct {
	cfg     ServiceConfig
	logger  ports.Logger
	data    ports.MarketDataProvider
	source  ports.PositionSource
	engine  *Engine
	builder *market.SnapshotBuilder

	mu         sync.Mutex // Protects klineCache
	klineCache map[string][]*domain.Kline
	onResult   func(TickResult)
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg ServiceConfig,
	logger ports.Logger,
	data ports.MarketDataProvider,
	source ports.PositionSource,
	engine *Engine,
	builder *market.SnapshotBuilder,
) (*TradingService, error) {
	if logger == nil || data == nil || engine == nil || builder == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &TradingService{
		cfg:        cfg,
		logger:     logger,
		data:       data,
		source:     source,
		engine:     engine,
		builder:    builder,
		klineCache: make(map[string][]*domain.Kline, len(cfg.Symbols)),
	}, nil
}

// OnResult registers a callback invoked after every evaluated tick.
func (s *TradingService) OnResult(fn func(TickResult)) {
	s.onResult = fn
}

// Start runs until ctx is cancelled or a stream dies. The ledger is saved on
// the way out.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...", map[string]interface{}{"symbols": s.cfg.Symbols, "interval": s.cfg.Interval})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.cfg.HandleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	defer s.saveOnShutdown()

	// --- Initialization Steps ---
	if syncer, ok := s.data.(serverTimeSyncer); ok {
		if err := syncer.SetServerTime(ctx); err != nil {
			s.logger.Error(ctx, err, "Failed to synchronize server time")
			return fmt.Errorf("failed to set server time: %w", err)
		}
		s.logger.Info(ctx, "Server time synchronized")
	}

	if s.source != nil {
		n, err := s.engine.Restore(ctx, s.source, s.cfg.Symbols, time.Now())
		if err != nil {
			s.logger.Error(ctx, err, "Failed to restore open positions")
			return fmt.Errorf("failed to restore open positions: %w", err)
		}
		s.logger.Info(ctx, "Open positions restored", map[string]interface{}{"adopted": n})
	}

	if err := s.warmUp(ctx); err != nil {
		return err
	}

	// --- Start WebSocket Streams ---
	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range s.cfg.Symbols {
		symbol := symbol
		g.Go(func() error { return s.stream(gctx, symbol) })
	}
	err := g.Wait()
	if ctx.Err() != nil {
		s.logger.Info(context.Background(), "Trading Service stopped.")
		return nil
	}
	return err
}

// warmUp loads enough history for every symbol in parallel.
func (s *TradingService) warmUp(ctx context.Context) error {
	required := s.builder.RequiredDataPoints()
	if r := s.engine.Strategy().RequiredDataPoints(); r > required {
		required = r
	}
	s.logger.Info(ctx, "Loading initial klines", map[string]interface{}{"requiredPoints": required})

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range s.cfg.Symbols {
		symbol := symbol
		g.Go(func() error {
			klines, err := s.data.GetKlines(gctx, symbol, s.cfg.Interval, required)
			if err != nil {
				return fmt.Errorf("failed to load initial klines for %s: %w", symbol, err)
			}
			if len(klines) < required {
				return fmt.Errorf("not enough initial klines for %s: got %d, need %d", symbol, len(klines), required)
			}
			s.mu.Lock()
			s.klineCache[symbol] = klines
			s.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, err, "Insufficient historical data")
		return err
	}
	return nil
}

func (s *TradingService) stream(ctx context.Context, symbol string) error {
	handler := func(k *domain.Kline) { s.HandleKline(ctx, k) }
	errHandler := func(err error) {
		s.logger.Error(ctx, err, "WebSocket stream error reported", map[string]interface{}{"symbol": symbol})
	}

	doneCh, stopCh, err := s.data.StreamKlines(ctx, symbol, s.cfg.Interval, handler, errHandler)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to start WebSocket stream", map[string]interface{}{"symbol": symbol})
		return fmt.Errorf("failed to start WebSocket stream for %s: %w", symbol, err)
	}
	s.logger.Info(ctx, "WebSocket stream started", map[string]interface{}{"symbol": symbol, "interval": s.cfg.Interval})

	select {
	case <-ctx.Done():
		select {
		case stopCh <- struct{}{}:
		default:
			s.logger.Warn(context.Background(), "Failed to send stop signal to WebSocket (already closed?)", map[string]interface{}{"symbol": symbol})
		}
		select {
		case <-doneCh:
		case <-time.After(s.cfg.ShutdownTimeout):
			s.logger.Warn(context.Background(), "Timeout waiting for WebSocket stream to shut down", map[string]interface{}{"symbol": symbol})
		}
		return nil
	case <-doneCh:
		err := fmt.Errorf("websocket stream for %s stopped unexpectedly", symbol)
		s.logger.Error(ctx, err, "WebSocket stream stopped")
		return err
	}
}

// HandleKline appends a final kline to the cache and evaluates the symbol.
// It returns nil when nothing was evaluated.
func (s *TradingService) HandleKline(ctx context.Context, kline *domain.Kline) *TickResult {
	// Only process final klines to avoid acting on incomplete data
	if kline == nil || !kline.IsFinal {
		return nil
	}

	s.mu.Lock()
	cache := append(s.klineCache[kline.Symbol], kline)
	if len(cache) > maxKlineCacheSize {
		cache = cache[len(cache)-maxKlineCacheSize:]
	}
	s.klineCache[kline.Symbol] = cache
	window := append([]*domain.Kline(nil), cache...)
	s.mu.Unlock()

	snapshot, err := s.builder.Build(kline.Symbol, window)
	if err != nil {
		s.logger.Debug(ctx, "Snapshot not ready", map[string]interface{}{"symbol": kline.Symbol, "error": err.Error()})
		return nil
	}
	res := s.engine.Evaluate(ctx, snapshot)
	s.logger.Debug(ctx, "Tick evaluated", map[string]interface{}{
		"symbol":  kline.Symbol,
		"price":   snapshot.Price,
		"outcome": res.Outcome,
		"closed":  len(res.Closed),
	})
	if s.onResult != nil {
		s.onResult(res)
	}
	return &res
}

func (s *TradingService) saveOnShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.engine.Persist(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to save risk state on shutdown")
		return
	}
	s.logger.Info(ctx, "Risk state saved on shutdown")
}
