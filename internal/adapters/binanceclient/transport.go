package binanceclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// Execute places a market order that opens exposure.
func (c *Client) Execute(ctx context.Context, req ports.OrderRequest) (*ports.Fill, error) {
	op := "Execute"
	order, err := c.placeMarket(ctx, req.Symbol, req.Side, req.Quantity, req.ClientOrderID, false)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	fill := c.fillFrom(ctx, order, req.Quantity, req.ReferencePrice)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":   req.Symbol,
		"side":     req.Side,
		"quantity": fill.Quantity,
		"orderID":  fill.OrderID,
		"avgPrice": fill.Price,
	})
	return fill, nil
}

// Close flattens pos with a reduce-only market order on the opposite side.
func (c *Client) Close(ctx context.Context, pos *domain.Position, marketPrice float64) (*ports.Fill, error) {
	op := "Close"
	side := pos.Side.Opposite()
	order, err := c.placeMarket(ctx, pos.Symbol, side, pos.Quantity, "", true)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	fill := c.fillFrom(ctx, order, pos.Quantity, marketPrice)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"positionID": pos.ID,
		"symbol":     pos.Symbol,
		"side":       side,
		"orderID":    fill.OrderID,
		"avgPrice":   fill.Price,
	})
	return fill, nil
}

func (c *Client) placeMarket(ctx context.Context, symbol string, side domain.OrderSide, qty float64, clientID string, reduceOnly bool) (*futures.CreateOrderResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	quantity := decimal.NewFromFloat(qty).Truncate(c.quantityPrecision)
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity %v rounds to zero", ports.ErrInvalidRequest, qty)
	}

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side)).
		Type(futures.OrderTypeMarket).
		Quantity(quantity.String()).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if clientID != "" {
		svc = svc.NewClientOrderID(clientID)
	}
	return svc.Do(ctx)
}

// fillFrom builds a fill from an order response. Binance may report a zero
// average price for market orders; the order is then re-read, and the
// reference price is the last resort.
func (c *Client) fillFrom(ctx context.Context, order *futures.CreateOrderResponse, requestedQty, referencePrice float64) *ports.Fill {
	avg, _ := strconv.ParseFloat(order.AvgPrice, 64)
	executed, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	updated := order.UpdateTime

	if avg <= 0 {
		qctx, cancel := c.withTimeout(ctx)
		defer cancel()
		o, err := c.futuresClient.NewGetOrderService().Symbol(order.Symbol).OrderID(order.OrderID).Do(qctx)
		if err != nil {
			c.logger.Warn(ctx, "fillFrom: order lookup failed, using reference price", map[string]interface{}{"orderID": order.OrderID, "error": err.Error()})
		} else {
			avg, _ = strconv.ParseFloat(o.AvgPrice, 64)
			if q, _ := strconv.ParseFloat(o.ExecutedQuantity, 64); q > 0 {
				executed = q
			}
			updated = o.UpdateTime
		}
	}
	if avg <= 0 {
		avg = referencePrice
	}
	if executed <= 0 {
		executed = requestedQty
	}

	filledAt := time.Now()
	if updated > 0 {
		filledAt = time.UnixMilli(updated)
	}
	return &ports.Fill{
		OrderID:  strconv.FormatInt(order.OrderID, 10),
		Symbol:   order.Symbol,
		Side:     domain.OrderSide(order.Side),
		Quantity: executed,
		Price:    avg,
		FilledAt: filledAt,
	}
}

// OpenPositions implements ports.PositionSource with the position risk endpoint.
func (c *Client) OpenPositions(ctx context.Context, symbols []string) ([]*domain.Position, error) {
	op := "OpenPositions"
	out := make([]*domain.Position, 0)
	for _, symbol := range symbols {
		qctx, cancel := c.withTimeout(ctx)
		risks, err := c.futuresClient.NewGetPositionRiskService().Symbol(symbol).Do(qctx)
		cancel()
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		for _, r := range risks {
			if pos := translatePositionRisk(r); pos != nil {
				out = append(out, pos)
			}
		}
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbols": symbols, "count": len(out)})
	return out, nil
}
