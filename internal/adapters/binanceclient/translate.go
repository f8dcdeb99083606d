package binanceclient

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"dailyTrader/internal/domain"
)

// translatePositionRisk converts a venue position into a domain position.
// Flat symbols yield nil. The ID is derived from symbol and side so that
// repeated restores adopt the same position once.
func translatePositionRisk(pos *futures.PositionRisk) *domain.Position {
	if pos == nil {
		return nil
	}
	amt, err := strconv.ParseFloat(pos.PositionAmt, 64)
	if err != nil || amt == 0 {
		return nil
	}
	entry, _ := strconv.ParseFloat(pos.EntryPrice, 64)
	side := domain.Buy
	if amt < 0 {
		side = domain.Sell
		amt = -amt
	}
	return &domain.Position{
		ID:         fmt.Sprintf("binance-%s-%s", pos.Symbol, side),
		Symbol:     pos.Symbol,
		Side:       side,
		EntryPrice: entry,
		Quantity:   amt,
		Status:     domain.StatusOpen,
		BestPrice:  entry,
	}
}

type ohlcv struct {
	open, high, low, close, volume string
}

func (s ohlcv) parse() (o, h, l, c, v float64, err error) {
	if o, err = strconv.ParseFloat(s.open, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing open price '%s': %w", s.open, err)
	}
	if h, err = strconv.ParseFloat(s.high, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing high price '%s': %w", s.high, err)
	}
	if l, err = strconv.ParseFloat(s.low, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing low price '%s': %w", s.low, err)
	}
	if c, err = strconv.ParseFloat(s.close, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing close price '%s': %w", s.close, err)
	}
	if v, err = strconv.ParseFloat(s.volume, 64); err != nil {
		return 0, 0, 0, 0, 0, fmt.Errorf("parsing volume '%s': %w", s.volume, err)
	}
	return o, h, l, c, v, nil
}

func translateWsKline(event *futures.WsKlineEvent) (*domain.Kline, error) {
	if event == nil {
		return nil, errors.New("received nil kline event")
	}
	k := event.Kline
	o, h, l, c, v, err := ohlcv{k.Open, k.High, k.Low, k.Close, k.Volume}.parse()
	if err != nil {
		return nil, err
	}
	return &domain.Kline{
		OpenTime:  time.UnixMilli(k.StartTime),
		CloseTime: time.UnixMilli(k.EndTime),
		Symbol:    k.Symbol,
		Interval:  k.Interval,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    v,
		IsFinal:   k.IsFinal,
	}, nil
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	o, h, l, c, v, err := ohlcv{bk.Open, bk.High, bk.Low, bk.Close, bk.Volume}.parse()
	if err != nil {
		return nil, err
	}
	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol, // not part of futures.Kline
		Interval:  interval,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    v,
		IsFinal:   true, // Historical klines are always final
	}, nil
}
