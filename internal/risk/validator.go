package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
)

// Limits are the account-level gates applied to every sized trade.
// Zero disables a numeric limit.
type Limits struct {
	MaxDailyLossFraction     float64 `yaml:"max_daily_loss"`
	MaxDailyGainFraction     float64 `yaml:"max_daily_gain"`
	MaxTradesPerDay          int     `yaml:"max_trades_per_day"`
	MaxOpenPositions         int     `yaml:"max_open_positions"`
	AllowSameSymbol          bool    `yaml:"allow_same_symbol"`
	MaxTotalExposureFraction float64 `yaml:"max_total_exposure"`
	MaxDrawdownHalt          float64 `yaml:"max_drawdown_halt"`
}

// RejectionCode identifies which gate refused a trade.
type RejectionCode string

const (
	RejectDailyLoss        RejectionCode = "daily_loss_limit"
	RejectDailyGain        RejectionCode = "daily_gain_limit"
	RejectDailyTradeCount  RejectionCode = "daily_trade_count"
	RejectMaxOpenPositions RejectionCode = "max_open_positions"
	RejectSameSymbol       RejectionCode = "same_symbol"
	RejectExposureCap      RejectionCode = "exposure_cap"
	RejectDrawdownHalt     RejectionCode = "drawdown_halt"
)

// ValidationRejection is the expected, non-exceptional refusal of a trade.
type ValidationRejection struct {
	Code   RejectionCode
	Reason string
}

func (r *ValidationRejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Reason)
}

// Unwrap lets callers match with errors.Is(err, ports.ErrValidationRejected).
func (r *ValidationRejection) Unwrap() error {
	return ports.ErrValidationRejected
}

// Outcome maps the rejection onto the decision taxonomy.
func (r *ValidationRejection) Outcome() domain.Outcome {
	switch r.Code {
	case RejectDailyLoss, RejectDailyGain, RejectDailyTradeCount, RejectMaxOpenPositions:
		return domain.OutcomeRejectedByLimits
	default:
		return domain.OutcomeRejectedByRisk
	}
}

// TradeValidator is a pure predicate over a sized trade, a ledger snapshot
// and the open-position set.
type TradeValidator struct {
	limits Limits
}

// NewTradeValidator returns a validator enforcing limits.
func NewTradeValidator(limits Limits) *TradeValidator {
	return &TradeValidator{limits: limits}
}

// Limits returns the configured limits.
func (v *TradeValidator) Limits() Limits {
	return v.limits
}

// pctOf expresses v as a percentage of base so reasons never carry account
// amounts.
func pctOf(v, base decimal.Decimal) float64 {
	if !base.IsPositive() {
		return 0
	}
	return v.Div(base).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func reject(code RejectionCode, format string, args ...interface{}) *ValidationRejection {
	return &ValidationRejection{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Validate returns nil when the trade is approved. Checks run in a fixed
// order and the first failing one wins.
func (v *TradeValidator) Validate(trade *SizedTrade, state domain.RiskState, open []*domain.Position) *ValidationRejection {
	lim := v.limits
	dayStart := state.DayStartEquity()

	if lim.MaxDailyLossFraction > 0 {
		limit := dayStart.Mul(decimal.NewFromFloat(lim.MaxDailyLossFraction))
		if state.DailyPnL.LessThanOrEqual(limit.Neg()) {
			return reject(RejectDailyLoss, "daily loss %.2f%% reached limit %.2f%%", -pctOf(state.DailyPnL, dayStart), lim.MaxDailyLossFraction*100)
		}
	}

	if lim.MaxDailyGainFraction > 0 {
		limit := dayStart.Mul(decimal.NewFromFloat(lim.MaxDailyGainFraction))
		if state.DailyPnL.GreaterThanOrEqual(limit) {
			return reject(RejectDailyGain, "daily gain %.2f%% reached target %.2f%%", pctOf(state.DailyPnL, dayStart), lim.MaxDailyGainFraction*100)
		}
	}

	if lim.MaxTradesPerDay > 0 && state.TradesToday >= lim.MaxTradesPerDay {
		return reject(RejectDailyTradeCount, "daily trade count %d/%d reached", state.TradesToday, lim.MaxTradesPerDay)
	}

	if lim.MaxOpenPositions > 0 && len(open) >= lim.MaxOpenPositions {
		return reject(RejectMaxOpenPositions, "%d/%d positions already open", len(open), lim.MaxOpenPositions)
	}

	if !lim.AllowSameSymbol {
		for _, p := range open {
			if p.Symbol == trade.Symbol {
				return reject(RejectSameSymbol, "position already open on %s", trade.Symbol)
			}
		}
	}

	if lim.MaxTotalExposureFraction > 0 {
		exposure := decimal.NewFromFloat(trade.Notional)
		for _, p := range open {
			exposure = exposure.Add(decimal.NewFromFloat(p.Notional()))
		}
		limit := state.Equity.Mul(decimal.NewFromFloat(lim.MaxTotalExposureFraction))
		if exposure.GreaterThan(limit) {
			return reject(RejectExposureCap, "total exposure %.2f%% of equity would exceed cap %.2f%%", pctOf(exposure, state.Equity), lim.MaxTotalExposureFraction*100)
		}
	}

	if lim.MaxDrawdownHalt > 0 {
		if dd := state.CurrentDrawdown(); dd >= lim.MaxDrawdownHalt {
			return reject(RejectDrawdownHalt, "drawdown %.2f%% at or above halt %.2f%%", dd*100, lim.MaxDrawdownHalt*100)
		}
	}

	return nil
}
