package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/config"
	"dailyTrader/internal/adapters/paper"
	"dailyTrader/internal/domain"
	"dailyTrader/internal/state"
)

func TestBuildEngine(t *testing.T) {
	ctx := context.Background()
	tr, err := paper.New(paper.Config{})
	require.NoError(t, err)

	t.Run("requires a transport", func(t *testing.T) {
		_, err := BuildEngine(ctx, config.DefaultEngineConfig(), EngineOptions{})
		assert.Error(t, err)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := config.DefaultEngineConfig()
		cfg.Limits.MaxDailyLossFraction = 2
		_, err := BuildEngine(ctx, cfg, EngineOptions{Transport: tr})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max daily loss")
	})

	t.Run("fresh ledger without a repository", func(t *testing.T) {
		w, err := BuildEngine(ctx, config.DefaultEngineConfig(), EngineOptions{Transport: tr, Start: day})
		require.NoError(t, err)
		assert.Equal(t, state.SourceDefault, w.Loaded.Source)
		assert.Equal(t, "10000", w.Engine.State().Equity.String())
		assert.Equal(t, "2026-03-14", w.Engine.State().LastResetDate)
		assert.Equal(t, "learning_relative", w.Engine.Strategy().Name())
		assert.NotNil(t, w.Engine.filter)
		assert.NotNil(t, w.Engine.recorder, "paper transport records protective levels")
		assert.Nil(t, w.Engine.store)
	})

	t.Run("resumes persisted state", func(t *testing.T) {
		saved := domain.DefaultRiskState(10000, day)
		saved.Equity = decimal.RequireFromString("9750.5")
		saved.DailyPnL = decimal.RequireFromString("-249.5")
		saved.TradesToday = 4
		saved.MaxDrawdown = 0.02495
		repo := &memStateRepo{saved: &saved}

		cfg := config.DefaultEngineConfig()
		cfg.Mode = domain.ModeProduction
		cfg.FilterEnabled = false
		w, err := BuildEngine(ctx, cfg, EngineOptions{Transport: tr, State: repo, Start: day})
		require.NoError(t, err)

		assert.Equal(t, state.SourcePersisted, w.Loaded.Source)
		assert.True(t, w.Engine.State().Equity.Equal(saved.Equity))
		assert.Equal(t, 4, w.Engine.State().TradesToday)
		assert.Equal(t, "production_ema_rsi_macd", w.Engine.Strategy().Name())
		assert.Nil(t, w.Engine.filter)
		require.NoError(t, w.Engine.Persist(ctx))
		assert.Equal(t, 1, repo.saves)
	})
}
