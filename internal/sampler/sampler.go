package sampler

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync"

	"dailyTrader/internal/domain"
	"dailyTrader/internal/ports"
	"dailyTrader/internal/utils"
)

// Feature names. Only these may appear in a sample.
const (
	FeatureEMADiffPct     = "ema_diff_pct"
	FeatureRSINormalized  = "rsi_normalized"
	FeatureATRPct         = "atr_pct"
	FeaturePriceToFastPct = "price_to_fast_pct"
	FeaturePriceToSlowPct = "price_to_slow_pct"
	FeatureTrendDirection = "trend_direction"
	FeatureTrendStrength  = "trend_strength"
)

// AllowedFeatures is the feature whitelist.
var AllowedFeatures = map[string]bool{
	FeatureEMADiffPct:     true,
	FeatureRSINormalized:  true,
	FeatureATRPct:         true,
	FeaturePriceToFastPct: true,
	FeaturePriceToSlowPct: true,
	FeatureTrendDirection: true,
	FeatureTrendStrength:  true,
}

// BuildFeatures derives the sample features from relative indicators.
func BuildFeatures(rel domain.RelativeIndicators) map[string]float64 {
	direction := 0.0
	switch {
	case rel.EMADiffPct > 0:
		direction = 1
	case rel.EMADiffPct < 0:
		direction = -1
	}
	return map[string]float64{
		FeatureEMADiffPct:     rel.EMADiffPct,
		FeatureRSINormalized:  (rel.RSI - 50) / 50,
		FeatureATRPct:         rel.ATRPct,
		FeaturePriceToFastPct: rel.PriceToFastPct,
		FeaturePriceToSlowPct: rel.PriceToSlowPct,
		FeatureTrendDirection: direction,
		FeatureTrendStrength:  math.Abs(rel.EMADiffPct) / 100,
	}
}

// Config controls down-sampling.
type Config struct {
	Mode              domain.TradingMode `yaml:"-"`
	NoSignalKeepEvery int                `yaml:"no_signal_keep_every"` // keep 1 in N no_signal samples; 1 keeps all
}

// Draft is a sample before the decision outcome is known.
type Draft struct {
	sample domain.DecisionSample
}

// Proposed returns the action proposed when the draft was started.
func (d *Draft) Proposed() domain.Action {
	return d.sample.ProposedAction
}

// Sampler turns each tick into a decision sample and appends the kept ones
// to a sink.
type Sampler struct {
	cfg    Config
	sink   ports.DecisionSink
	logger ports.Logger

	mu       sync.Mutex
	noSignal int
}

// New creates a sampler. sink may be nil, in which case samples are built and
// returned but not stored.
func New(cfg Config, sink ports.DecisionSink, logger ports.Logger) (*Sampler, error) {
	if cfg.NoSignalKeepEvery < 1 {
		return nil, fmt.Errorf("no_signal keep ratio must be at least 1, got %d", cfg.NoSignalKeepEvery)
	}
	if cfg.Mode != domain.ModeProduction && cfg.Mode != domain.ModeLearning {
		return nil, fmt.Errorf("unknown trading mode %q", cfg.Mode)
	}
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Sampler{cfg: cfg, sink: sink, logger: logger}, nil
}

// Begin captures the pre-decision view of a tick.
func (s *Sampler) Begin(obs domain.Observation, proposed domain.Action, space domain.DecisionSpace) *Draft {
	return &Draft{sample: domain.DecisionSample{
		Timestamp:      obs.Time,
		Symbol:         obs.Symbol,
		Mode:           s.cfg.Mode,
		Features:       BuildFeatures(obs.Relative),
		DecisionSpace:  space.Actions(),
		ProposedAction: proposed,
		MarketRegime:   obs.Regime,
		Volatility:     obs.Volatility,
	}}
}

// Finish records the outcome, applies down-sampling and appends kept samples.
// The returned sample is complete even when it was not kept.
func (s *Sampler) Finish(ctx context.Context, draft *Draft, outcome domain.Outcome, executed domain.Action, reason string) (*domain.DecisionSample, bool, error) {
	op := "Finish"
	if draft == nil {
		return nil, false, fmt.Errorf("%s failed: %w: nil draft", op, ports.ErrInvalidRequest)
	}
	sample := draft.sample
	sample.Outcome = outcome
	sample.ExecutedAction = executed
	sample.Reason = reason
	sample.ID = utils.NewSampleID(sample.Timestamp)

	if err := ValidateSample(&sample); err != nil {
		return nil, false, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}

	if !s.keep(outcome) {
		return &sample, false, nil
	}
	if s.sink != nil {
		if err := s.sink.Append(ctx, &sample); err != nil {
			s.logger.Error(ctx, err, op+": Failed to append decision sample", map[string]interface{}{"sampleID": sample.ID})
			return &sample, false, fmt.Errorf("%s failed: %w", op, err)
		}
	}
	return &sample, true, nil
}

func (s *Sampler) keep(outcome domain.Outcome) bool {
	if outcome != domain.OutcomeNoSignal {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := s.noSignal%s.cfg.NoSignalKeepEvery == 0
	s.noSignal++
	return keep
}

// ValidateSample checks the feature whitelist and the consistency between
// outcome, executed action and decision space.
func ValidateSample(s *domain.DecisionSample) error {
	for k, v := range s.Features {
		if !AllowedFeatures[k] {
			return fmt.Errorf("feature %q is not allowed", k)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %q is not finite", k)
		}
	}
	if !s.Outcome.Valid() {
		return fmt.Errorf("unknown outcome %q", s.Outcome)
	}
	if !s.Allows(domain.ActionHold) {
		return fmt.Errorf("decision space must contain HOLD")
	}
	if s.Reason == "" {
		return fmt.Errorf("reason is required")
	}
	if n := absoluteNumber(s.Reason); n != "" {
		return fmt.Errorf("reason carries absolute value %q", n)
	}
	if s.Outcome == domain.OutcomeAccepted {
		if s.ExecutedAction != domain.ActionBuy && s.ExecutedAction != domain.ActionSell {
			return fmt.Errorf("accepted sample must execute BUY or SELL, got %q", s.ExecutedAction)
		}
	} else if s.ExecutedAction != domain.ActionHold {
		return fmt.Errorf("%s sample must execute HOLD, got %q", s.Outcome, s.ExecutedAction)
	}
	return nil
}

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// absoluteNumber returns the first number in reason that could be a price,
// quantity or money amount. Percentages, counts ("3/5"), multipliers
// ("x1.50"), digits inside identifiers and values in [-1, 1] are relative.
func absoluteNumber(reason string) string {
	for _, loc := range numberPattern.FindAllStringIndex(reason, -1) {
		start, end := loc[0], loc[1]
		if start > 0 {
			prev := reason[start-1]
			if prev == 'x' || prev == '/' {
				continue
			}
			if isWordByte(prev) || prev == '.' {
				continue
			}
		}
		if end < len(reason) {
			next := reason[end]
			if next == '%' || isWordByte(next) {
				continue
			}
			if next == '/' && end+1 < len(reason) && reason[end+1] >= '0' && reason[end+1] <= '9' {
				continue
			}
		}
		v, err := strconv.ParseFloat(reason[start:end], 64)
		if err == nil && v <= 1 {
			continue
		}
		return reason[start:end]
	}
	return ""
}

// HoldReason formats the reason of a sample that did not trade.
func HoldReason(format string, args ...interface{}) string {
	return "HOLD: " + fmt.Sprintf(format, args...)
}
