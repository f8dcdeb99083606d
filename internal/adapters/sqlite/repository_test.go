package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "daily-trader-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	// Return cleanup function
	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_StateRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	got, err := repo.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty database has no state")

	savedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	state := domain.RiskState{
		InitialEquity: decimal.RequireFromString("10000"),
		Equity:        decimal.RequireFromString("10123.456789012345"),
		DailyPnL:      decimal.RequireFromString("-12.34"),
		TradesToday:   3,
		PeakEquity:    decimal.RequireFromString("10200.1"),
		MaxDrawdown:   0.0421,
		LastResetDate: "2026-03-14",
		SavedAt:       savedAt,
	}
	require.NoError(t, repo.SaveState(ctx, state))

	got, err = repo.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, state.Equal(*got), "decimals must round-trip exactly: got %+v", got)
	assert.True(t, savedAt.Equal(got.SavedAt))

	// a second save replaces the row
	state.TradesToday = 4
	require.NoError(t, repo.SaveState(ctx, state))
	got, err = repo.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TradesToday)

	var rows int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM risk_state`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestRepository_LoadState_Corrupted(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, domain.DefaultRiskState(1000, time.Now())))
	_, err := repo.db.Exec(`UPDATE risk_state SET equity = 'not-a-number' WHERE id = 1`)
	require.NoError(t, err)

	got, err := repo.LoadState(ctx)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ports.ErrStateCorruption)
}

func TestRepository_Trades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		{PositionID: "p1", Symbol: "BTCUSDT", Side: domain.Buy, EntryPrice: 100, ExitPrice: 110, Quantity: 1, PNL: 10,
			RiskAmount: 5, RMultiple: 2, MaxFavorableR: 2.2, MaxAdverseR: -0.4,
			EntryTime:  base, ExitTime: base.Add(time.Hour), CloseReason: domain.CloseReasonTakeProfit},
		{PositionID: "p2", Symbol: "ETHUSDT", Side: domain.Sell, EntryPrice: 50, ExitPrice: 52, Quantity: 2, PNL: -4,
			RiskAmount: 4, RMultiple: -1, MaxFavorableR: 0.3, MaxAdverseR: -1,
			EntryTime:  base, ExitTime: base.Add(2 * time.Hour), CloseReason: domain.CloseReasonStopLoss},
		{PositionID: "p3", Symbol: "BTCUSDT", Side: domain.Sell, EntryPrice: 110, ExitPrice: 109, Quantity: 1, PNL: 1,
			RiskAmount: 2, RMultiple: 0.5, MaxFavorableR: 0.5, MaxAdverseR: 0,
			EntryTime:  base.Add(2 * time.Hour), ExitTime: base.Add(3 * time.Hour), CloseReason: domain.CloseReasonTimeStop},
	}
	for _, tr := range trades {
		id, err := repo.CreateTrade(ctx, tr)
		require.NoError(t, err)
		assert.Equal(t, id, tr.ID)
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, []string{all[0].PositionID, all[1].PositionID, all[2].PositionID})
	assert.Equal(t, domain.Sell, all[1].Side)
	assert.Equal(t, domain.CloseReasonStopLoss, all[1].CloseReason)
	assert.InDelta(t, -1.0, all[1].RMultiple, 1e-9)
	assert.InDelta(t, 0.3, all[1].MaxFavorableR, 1e-9)

	btc, err := repo.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, btc, 2)
	assert.Equal(t, "p3", btc[0].PositionID, "most recent exit first")

	limited, err := repo.FindBySymbol(ctx, "BTCUSDT", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_DecisionSamples(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	samples := []*domain.DecisionSample{
		{ID: "01A", Timestamp: ts, Symbol: "BTCUSDT", Mode: domain.ModeLearning,
			Features:       map[string]float64{"rsi_norm": 0.25, "atr_pct": 0.012},
			DecisionSpace:  []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold},
			ProposedAction: domain.ActionBuy, ExecutedAction: domain.ActionHold,
			Outcome:        domain.OutcomeRejectedByLimits, Reason: "HOLD: daily_trade_count",
			MarketRegime:   domain.RegimeRanging, Volatility: domain.VolatilityMedium},
		{ID: "01B", Timestamp: ts.Add(time.Minute), Symbol: "BTCUSDT", Mode: domain.ModeLearning,
			Features:       map[string]float64{"rsi_norm": 0.3},
			DecisionSpace:  []domain.Action{domain.ActionHold},
			ProposedAction: domain.ActionHold, ExecutedAction: domain.ActionHold,
			Outcome:        domain.OutcomeNoSignal, Reason: "HOLD: no signal",
			MarketRegime:   domain.RegimeRanging, Volatility: domain.VolatilityLow},
		{ID: "01C", Timestamp: ts.Add(2 * time.Minute), Symbol: "BTCUSDT", Mode: domain.ModeLearning,
			Features:       map[string]float64{},
			DecisionSpace:  []domain.Action{domain.ActionSell, domain.ActionHold},
			ProposedAction: domain.ActionSell, ExecutedAction: domain.ActionHold,
			Outcome:        domain.OutcomeRejectedByLimits, Reason: "HOLD: max_open_positions",
			MarketRegime:   domain.RegimeChaotic, Volatility: domain.VolatilityHigh},
	}
	for _, s := range samples {
		require.NoError(t, repo.Append(ctx, s))
	}
	assert.ErrorIs(t, repo.Append(ctx, samples[0]), ports.ErrUpdateFailed, "samples are append-only")

	got, err := repo.FindSamples(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, samples[0].Features, got[0].Features)
	assert.Equal(t, samples[0].DecisionSpace, got[0].DecisionSpace)
	assert.Equal(t, domain.OutcomeNoSignal, got[1].Outcome)
	assert.Equal(t, domain.RegimeChaotic, got[2].MarketRegime)
	assert.True(t, ts.Equal(got[0].Timestamp))

	limited, err := repo.FindSamples(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	counts, err := repo.CountByOutcome(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Outcome]int{
		domain.OutcomeRejectedByLimits: 2,
		domain.OutcomeNoSignal:         1,
	}, counts)
}

func TestRepository_PaperPositions(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	opened := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	first := &domain.Position{ID: "a", Symbol: "BTCUSDT", Side: domain.Buy, EntryPrice: 50000, Quantity: 0.1,
		StopLoss: 49600, TakeProfit: 50800, RiskAmount: 40, RiskDistance: 400, OpenedAt: opened, EntryOrderID: "paper-1"}
	second := &domain.Position{ID: "b", Symbol: "ETHUSDT", Side: domain.Sell, EntryPrice: 3000, Quantity: 1,
		StopLoss: 3050, TakeProfit: 2900, RiskAmount: 50, RiskDistance: 50, OpenedAt: opened.Add(time.Minute), EntryOrderID: "paper-2"}

	require.NoError(t, repo.SavePosition(ctx, second))
	require.NoError(t, repo.SavePosition(ctx, first))

	// upsert keeps a single row
	first.StopLoss = 49800
	require.NoError(t, repo.SavePosition(ctx, first))

	got, err := repo.FindOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 49800.0, got[0].StopLoss)
	assert.Equal(t, domain.StatusOpen, got[0].Status)
	assert.Equal(t, domain.Sell, got[1].Side)
	assert.True(t, got[1].IsProtected())

	require.NoError(t, repo.DeletePosition(ctx, "a"))
	assert.ErrorIs(t, repo.DeletePosition(ctx, "a"), ports.ErrNotFound)

	got, err = repo.FindOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}
