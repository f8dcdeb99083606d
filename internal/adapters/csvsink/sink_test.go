package csvsink

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/internal/domain"
)

func sample(id string, outcome domain.Outcome) *domain.DecisionSample {
	return &domain.DecisionSample{
		ID:             id,
		Timestamp:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Symbol:         "BTCUSDT",
		Mode:           domain.ModeLearning,
		Features:       map[string]float64{"rsi_norm": 0.5, "atr_pct": 0.01},
		DecisionSpace:  []domain.Action{domain.ActionBuy, domain.ActionHold},
		ProposedAction: domain.ActionBuy,
		ExecutedAction: domain.ActionHold,
		Outcome:        outcome,
		Reason:         "HOLD: daily_trade_count: 50/50, reached",
		MarketRegime:   domain.RegimeRanging,
		Volatility:     domain.VolatilityMedium,
	}
}

func TestSink_WritesRows(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(&buf)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), sample("01A", domain.OutcomeRejectedByLimits)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "01A", rows[1][0])
	assert.Equal(t, "2026-03-14T12:00:00Z", rows[1][1])
	assert.Equal(t, "rejected_by_limits", rows[1][6])
	assert.Equal(t, "HOLD: daily_trade_count: 50/50, reached", rows[1][7], "commas survive quoting")
	assert.Equal(t, "BUY|HOLD", rows[1][10])
	assert.Equal(t, "atr_pct=0.01;rsi_norm=0.5", rows[1][11])
}

func TestOpen_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "samples.csv")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), sample("01A", domain.OutcomeNoSignal)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(context.Background(), sample("01B", domain.OutcomeAccepted)))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "01A", rows[1][0])
	assert.Equal(t, "01B", rows[2][0])
}

func TestFormatFeatures_Empty(t *testing.T) {
	assert.Equal(t, "", FormatFeatures(nil))
}
