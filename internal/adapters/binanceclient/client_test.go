package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{Logger: ports.NopLogger{}, UseTestnet: true})
	require.NoError(t, err)
	return c
}

func TestNew_Defaults(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "logger is required")

	c := newTestClient(t)
	assert.Equal(t, baseURLTestnet, c.futuresClient.BaseURL)
	assert.Equal(t, 10*time.Second, c.callTimeout)
	assert.Equal(t, time.Second, c.reconnectDelay)
	assert.Equal(t, 30*time.Second, c.maxReconnectDelay)
	assert.Equal(t, 10, c.maxReconnectAttempts)
	assert.Equal(t, int32(3), c.quantityPrecision)
}

func TestHandleError_Mapping(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limit", &common.APIError{Code: -1003, Message: "too many"}, ports.ErrRateLimited},
		{"order rejected", &common.APIError{Code: -2010}, ports.ErrOrderPlacementFailed},
		{"cancel rejected", &common.APIError{Code: -2011}, ports.ErrOrderPlacementFailed},
		{"reduce only rejected", &common.APIError{Code: -2022}, ports.ErrOrderPlacementFailed},
		{"margin", &common.APIError{Code: -2019}, ports.ErrInsufficientFunds},
		{"bad key", &common.APIError{Code: -2015}, ports.ErrInvalidAPIKeys},
		{"unmapped code", &common.APIError{Code: -9999}, ports.ErrUnknown},
		{"wrapped api error", fmt.Errorf("outer: %w", &common.APIError{Code: -4044}), ports.ErrPositionNotFound},
		{"deadline", context.DeadlineExceeded, ports.ErrTimeout},
		{"canceled", context.Canceled, ports.ErrContextCanceled},
		{"refused", errors.New("dial tcp: connection refused"), ports.ErrConnectionFailed},
		{"other", errors.New("boom"), ports.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.handleError(ctx, tt.err, "Op")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "Op")
		})
	}
	assert.NoError(t, c.handleError(ctx, nil, "Op"))
}

func TestTranslatePositionRisk(t *testing.T) {
	long := translatePositionRisk(&futures.PositionRisk{Symbol: "BTCUSDT", PositionAmt: "0.250", EntryPrice: "50000.5"})
	require.NotNil(t, long)
	assert.Equal(t, domain.Buy, long.Side)
	assert.Equal(t, 0.25, long.Quantity)
	assert.Equal(t, 50000.5, long.EntryPrice)
	assert.Equal(t, "binance-BTCUSDT-BUY", long.ID)
	assert.Equal(t, domain.StatusOpen, long.Status)

	short := translatePositionRisk(&futures.PositionRisk{Symbol: "ETHUSDT", PositionAmt: "-2", EntryPrice: "3000"})
	require.NotNil(t, short)
	assert.Equal(t, domain.Sell, short.Side)
	assert.Equal(t, 2.0, short.Quantity)

	assert.Nil(t, translatePositionRisk(&futures.PositionRisk{Symbol: "BTCUSDT", PositionAmt: "0.000"}))
	assert.Nil(t, translatePositionRisk(nil))
}

func TestTranslateKlines(t *testing.T) {
	bk := &futures.Kline{OpenTime: 1700000000000, CloseTime: 1700000059999,
		Open: "100", High: "105", Low: "99", Close: "104", Volume: "12.5"}
	k, err := translateBinanceKline(bk, "BTCUSDT", "1m")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", k.Symbol)
	assert.Equal(t, 104.0, k.Close)
	assert.True(t, k.IsFinal)
	assert.Equal(t, int64(1700000000000), k.OpenTime.UnixMilli())

	bk.High = "n/a"
	_, err = translateBinanceKline(bk, "BTCUSDT", "1m")
	assert.ErrorContains(t, err, "high price")

	ev := &futures.WsKlineEvent{Kline: futures.WsKline{StartTime: 1, EndTime: 2, Symbol: "ETHUSDT", Interval: "5m",
		Open: "1", High: "2", Low: "0.5", Close: "1.5", Volume: "3", IsFinal: false}}
	wk, err := translateWsKline(ev)
	require.NoError(t, err)
	assert.Equal(t, "5m", wk.Interval)
	assert.False(t, wk.IsFinal)

	_, err = translateWsKline(nil)
	assert.Error(t, err)
}
