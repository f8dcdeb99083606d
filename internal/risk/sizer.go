package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// SizingConfig holds the parameters of the position sizer.
type SizingConfig struct {
	StopATRMultiple     float64 `yaml:"stop_atr_multiple"`     // Stop distance in ATRs when the signal has no explicit stop
	TakeProfitMultiple  float64 `yaml:"take_profit_multiple"`  // Default take-profit distance in R
	MaxExposureFraction float64 `yaml:"max_exposure_fraction"` // Cap on a single trade's notional as a fraction of equity
	QuantityPrecision   int32   `yaml:"quantity_precision"`    // Decimal places kept on the quantity
}

// SizingRequest is the input of one sizing call.
type SizingRequest struct {
	Symbol       string
	Signal       *domain.Signal
	Equity       float64
	RiskFraction float64 // Fraction of equity to risk, already softened
	Volatility   float64 // ATR or another price-unit volatility estimate
}

// SizedTrade is a fully protected trade proposal.
type SizedTrade struct {
	Symbol             string
	Side               domain.OrderSide
	EntryPrice         float64
	Quantity           float64
	StopLoss           float64
	TakeProfit         float64
	RiskBudget         float64 // equity * riskFraction
	RiskAmount         float64 // quantity * riskDistance after clamping
	RiskDistance       float64
	Notional           float64
	TakeProfitMultiple float64
	Clamped            bool // notional was scaled down to the exposure cap
}

// PositionSizer converts a signal and a risk budget into a quantity.
type PositionSizer struct {
	cfg SizingConfig
}

// NewPositionSizer validates cfg and returns a sizer.
func NewPositionSizer(cfg SizingConfig) (*PositionSizer, error) {
	if cfg.StopATRMultiple <= 0 {
		return nil, fmt.Errorf("stop ATR multiple must be positive")
	}
	if cfg.TakeProfitMultiple <= 0 {
		return nil, fmt.Errorf("take-profit multiple must be positive")
	}
	if cfg.MaxExposureFraction <= 0 {
		return nil, fmt.Errorf("max exposure fraction must be positive")
	}
	if cfg.QuantityPrecision < 0 {
		return nil, fmt.Errorf("quantity precision cannot be negative")
	}
	return &PositionSizer{cfg: cfg}, nil
}

func invalidSizing(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ports.ErrInvalidSizingInput, fmt.Sprintf(format, args...))
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Size computes quantity = riskBudget / stopDistance, then clamps the
// notional to equity * MaxExposureFraction.
func (s *PositionSizer) Size(req SizingRequest) (*SizedTrade, error) {
	sig := req.Signal
	if sig == nil {
		return nil, invalidSizing("no signal")
	}
	if !sig.Side.Valid() {
		return nil, invalidSizing("unknown side %q", sig.Side)
	}
	price := sig.ReferencePrice
	if !positiveFinite(price) {
		return nil, invalidSizing("reference price %v must be positive", price)
	}
	if !positiveFinite(req.Equity) {
		return nil, invalidSizing("equity %v must be positive", req.Equity)
	}
	if !positiveFinite(req.RiskFraction) || req.RiskFraction >= 1 {
		return nil, invalidSizing("risk fraction %v must be in (0, 1)", req.RiskFraction)
	}

	sign := sig.Side.Sign()
	var stopDistance float64
	if sig.HasExplicitStop() {
		// distance is positive only when the stop sits on the losing side
		stopDistance = (price - sig.ExplicitStop) * sign
		if !positiveFinite(stopDistance) {
			return nil, invalidSizing("explicit stop %v is on the wrong side of price %v for %s", sig.ExplicitStop, price, sig.Side)
		}
	} else {
		stopDistance = req.Volatility * s.cfg.StopATRMultiple
		if !positiveFinite(stopDistance) {
			return nil, invalidSizing("stop distance %v from volatility %v must be positive", stopDistance, req.Volatility)
		}
	}

	priceD := decimal.NewFromFloat(price)
	distD := decimal.NewFromFloat(stopDistance)
	equityD := decimal.NewFromFloat(req.Equity)
	budget := equityD.Mul(decimal.NewFromFloat(req.RiskFraction))
	capD := equityD.Mul(decimal.NewFromFloat(s.cfg.MaxExposureFraction))

	qty := budget.Div(distD)
	clamped := false
	if qty.Mul(priceD).GreaterThan(capD) {
		qty = capD.Div(priceD)
		clamped = true
	}
	qty = qty.Truncate(s.cfg.QuantityPrecision)
	if !qty.IsPositive() {
		return nil, invalidSizing("quantity rounds to zero at precision %d", s.cfg.QuantityPrecision)
	}

	tpMult := sig.TakeProfitMultiple
	if tpMult <= 0 {
		tpMult = s.cfg.TakeProfitMultiple
	}
	signD := decimal.NewFromFloat(sign)
	stop := priceD.Sub(distD.Mul(signD))
	target := priceD.Add(distD.Mul(decimal.NewFromFloat(tpMult)).Mul(signD))
	if !stop.IsPositive() || !target.IsPositive() {
		return nil, invalidSizing("stop %s or target %s is not a valid price", stop, target)
	}

	return &SizedTrade{
		Symbol:             req.Symbol,
		Side:               sig.Side,
		EntryPrice:         price,
		Quantity:           qty.InexactFloat64(),
		StopLoss:           stop.InexactFloat64(),
		TakeProfit:         target.InexactFloat64(),
		RiskBudget:         budget.InexactFloat64(),
		RiskAmount:         qty.Mul(distD).InexactFloat64(),
		RiskDistance:       stopDistance,
		Notional:           qty.Mul(priceD).InexactFloat64(),
		TakeProfitMultiple: tpMult,
		Clamped:            clamped,
	}, nil
}
