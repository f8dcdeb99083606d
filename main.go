package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"dailyTrader/config"
	"dailyTrader/internal/adapters/binanceclient"
	"dailyTrader/internal/adapters/csvsink"
	"dailyTrader/internal/adapters/logger"
	"dailyTrader/internal/adapters/paper"
	"dailyTrader/internal/adapters/sqlite"
	"dailyTrader/internal/app"
	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// fanOut appends every sample to each sink in turn.
type fanOut []ports.DecisionSink

func (f fanOut) Append(ctx context.Context, s *domain.DecisionSample) error {
	for _, sink := range f {
		if err := sink.Append(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	var samples ports.DecisionSink = repo
	if cfg.SampleCSVPath != "" {
		csvSink, err := csvsink.Open(cfg.SampleCSVPath)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to open decision log CSV")
			log.Fatalf("FATAL: Failed to open decision log CSV: %v", err)
		}
		defer csvSink.Close()
		samples = fanOut{repo, csvSink}
	}

	// 4. Initialize Exchange Client (Binance Adapter)
	// Market data always comes from Binance; orders go there only when paper trading is off.
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		QuantityPrecision:    cfg.Engine.Sizing.QuantityPrecision,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized")

	var transport ports.OrderTransport = binanceClient
	var source ports.PositionSource = binanceClient
	if cfg.PaperTrading {
		paperTransport, err := paper.New(paper.Config{
			SlippageBps: cfg.SlippageBps,
			Book:        repo,
			Logger:      appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize paper transport")
			log.Fatalf("FATAL: Failed to initialize paper transport: %v", err)
		}
		transport, source = paperTransport, paperTransport
		appLogger.Info(ctx, "Paper trading enabled", map[string]interface{}{"slippageBps": cfg.SlippageBps})
	}

	// 5. Assemble the Engine
	wired, err := app.BuildEngine(ctx, cfg.Engine, app.EngineOptions{
		Transport: transport,
		State:     repo,
		Trades:    repo,
		Samples:   samples,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to assemble engine")
		log.Fatalf("FATAL: Failed to assemble engine: %v", err)
	}

	// 6. Initialize Application Service
	tradingService, err := app.NewTradingService(
		app.ServiceConfig{
			Symbols:       cfg.Engine.Symbols,
			Interval:      cfg.Engine.Interval,
			HandleSignals: true,
		},
		appLogger,
		binanceClient,
		source,
		wired.Engine,
		wired.Builder,
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized")

	// 7. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
