// Package config defines the run configuration. A Config is read once, validated,
// and then handed by value to every component; components clone it so the
// caller cannot change a run in flight.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/pkg/dmath"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Symbol     string           `yaml:"symbol"`
	Interval   string           `yaml:"interval"`
	Logging    LoggingConfig    `yaml:"logging"`
	Indicators IndicatorTable   `yaml:"indicators"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Confidence ConfidenceConfig `yaml:"confidence"`
	Gate       GateConfig       `yaml:"gate"`
	Risk       RiskConfig       `yaml:"risk"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Storage    StorageConfig    `yaml:"storage"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Server     ServerConfig     `yaml:"server"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// IndicatorConfig is the per-indicator weight and tuning block.
type IndicatorConfig struct {
	Weight  float64            `yaml:"weight"`
	Enabled bool               `yaml:"enabled"`
	Period  int                `yaml:"period"`
	Params  map[string]float64 `yaml:"params"`
}

// Param returns a tuning value or def when it is not set.
func (c IndicatorConfig) Param(name string, def float64) float64 {
	if v, ok := c.Params[name]; ok {
		return v
	}
	return def
}

var indicatorFields = map[string]bool{"weight": true, "enabled": true, "period": true, "params": true}

// ParamDefaults are the tuning values used when a key is absent from params.
// Kinds without an entry take no params.
var ParamDefaults = map[domain.IndicatorKind]map[string]float64{
	domain.IndicatorRSI:        {"oversold": 30, "overbought": 70},
	domain.IndicatorWilliamsR:  {"oversold": -80, "overbought": -20},
	domain.IndicatorMACD:       {"fast": 12, "slow": 26, "signal": 9},
	domain.IndicatorStochastic: {"smooth": 3, "oversold": 20, "overbought": 80},
	domain.IndicatorBollinger:  {"stddev": 2},
	domain.IndicatorEMATrend:   {"fast": 9, "slow": 21},
}

// Setting returns a tuning value for kind, falling back to ParamDefaults.
func (c IndicatorConfig) Setting(kind domain.IndicatorKind, name string) float64 {
	return c.Param(name, ParamDefaults[kind][name])
}

// IndicatorTable maps every supported indicator to its settings. Unknown keys
// are rejected while decoding.
type IndicatorTable map[domain.IndicatorKind]IndicatorConfig

func (t *IndicatorTable) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if *t == nil {
		*t = make(IndicatorTable)
	}
	for key, node := range raw {
		kind, err := domain.ParseIndicatorKind(key)
		if err != nil {
			return fmt.Errorf("indicators: %w", err)
		}
		if node.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(node.Content); i += 2 {
				if k := node.Content[i]; !indicatorFields[k.Value] {
					return fmt.Errorf("indicators.%s: line %d: field %s not found", key, k.Line, k.Value)
				}
			}
		}
		entry := (*t)[kind]
		if err := node.Decode(&entry); err != nil {
			return fmt.Errorf("indicators.%s: %w", key, err)
		}
		(*t)[kind] = entry
	}
	return nil
}

// TierBand is one symmetric classification band: scores >= Min map to Buy,
// scores <= -Min map to Sell.
type TierBand struct {
	Buy  domain.Tier `yaml:"buy"`
	Sell domain.Tier `yaml:"sell"`
	Min  float64     `yaml:"min"`
}

type MicrostructureConfig struct {
	BuySellWeight float64       `yaml:"buy_sell_weight"`
	DOMWeight     float64       `yaml:"dom_weight"`
	MaxAge        time.Duration `yaml:"max_age"`
}

type ScoringConfig struct {
	StrengthMultipliers map[domain.Strength]float64       `yaml:"strength_multipliers"`
	TypeMultipliers     map[domain.SignalCategory]float64 `yaml:"type_multipliers"`
	IndicatorScoreCap   float64                           `yaml:"indicator_score_cap"`
	MicrostructureCap   float64                           `yaml:"microstructure_cap"`
	TotalScoreCap       float64                           `yaml:"total_score_cap"`
	AuthorizeThreshold  float64                           `yaml:"authorize_threshold"`
	Tiers               []TierBand                        `yaml:"tiers"`
	Microstructure      MicrostructureConfig              `yaml:"microstructure"`
}

type ConfidenceConfig struct {
	ChopPenalty        float64 `yaml:"chop_penalty"`
	VolMediumThreshold float64 `yaml:"vol_medium_threshold"`
	VolHighThreshold   float64 `yaml:"vol_high_threshold"`
	VolPenaltyMedium   float64 `yaml:"vol_penalty_medium"`
	VolPenaltyHigh     float64 `yaml:"vol_penalty_high"`
	PerConflictPenalty float64 `yaml:"per_conflict_penalty"`
}

type GateConfig struct {
	Enabled               bool    `yaml:"enabled"`
	StrictMode            bool    `yaml:"strict_mode"`
	DeadZoneMin           float64 `yaml:"dead_zone_min"`
	ThresholdScore        float64 `yaml:"threshold_score"`
	SurchargeMediumATR    float64 `yaml:"surcharge_medium_atr"`
	SurchargeHighATR      float64 `yaml:"surcharge_high_atr"`
	SurchargeMedium       float64 `yaml:"surcharge_medium"`
	SurchargeHigh         float64 `yaml:"surcharge_high"`
	RequireThresholdCross bool    `yaml:"require_threshold_cross"`
	MinConfidence         float64 `yaml:"min_confidence"`
	MinIndicators         int     `yaml:"min_indicators"`
	MinConfluence         float64 `yaml:"min_confluence"`
	RequireTrendAlignment bool    `yaml:"require_trend_alignment"`
	MaxDrawdownPct        float64 `yaml:"max_drawdown_pct"`
}

// Strict threshold set. Strict mode swaps these in; it never enables a rule
// that is switched off.
const (
	StrictDeadZoneMin    = 30.0
	StrictThresholdScore = 90.0
	StrictMinConfidence  = 70.0
	StrictMinIndicators  = 4
	StrictMinConfluence  = 0.75
	StrictMaxDrawdownPct = 10.0
)

// Effective returns the thresholds the gate should use.
func (g GateConfig) Effective() GateConfig {
	if !g.StrictMode {
		return g
	}
	g.DeadZoneMin = StrictDeadZoneMin
	g.ThresholdScore = StrictThresholdScore
	g.MinConfidence = StrictMinConfidence
	g.MinIndicators = StrictMinIndicators
	g.MinConfluence = StrictMinConfluence
	g.MaxDrawdownPct = StrictMaxDrawdownPct
	return g
}

// RiskConfig values ending in ROI are leveraged percentages. Fees are
// fractions of notional, slippage is a percent of price.
type RiskConfig struct {
	InitialBalance         float64 `yaml:"initial_balance"`
	PositionSizePct        float64 `yaml:"position_size_pct"`
	Leverage               int     `yaml:"leverage"`
	StopLossROI            float64 `yaml:"stop_loss_roi"`
	TakeProfitROI          float64 `yaml:"take_profit_roi"`
	BreakEvenEnabled       bool    `yaml:"break_even_enabled"`
	BreakEvenActivationROI float64 `yaml:"break_even_activation_roi"`
	BreakEvenBufferROI     float64 `yaml:"break_even_buffer_roi"`
	TrailingEnabled        bool    `yaml:"trailing_enabled"`
	TrailingActivationROI  float64 `yaml:"trailing_activation_roi"`
	TrailingDistanceROI    float64 `yaml:"trailing_distance_roi"`
	TrailingStepROI        float64 `yaml:"trailing_step_roi"`
	EntryFee               float64 `yaml:"entry_fee"`
	ExitFee                float64 `yaml:"exit_fee"`
	SlippagePct            float64 `yaml:"slippage_pct"`
	SafetyBufferROI        float64 `yaml:"safety_buffer_roi"`
}

// BreakEvenFloor is the minimum ROI at which moving the stop to entry still
// covers the round-trip fee.
func (r RiskConfig) BreakEvenFloor() float64 {
	return dmath.F(dmath.BreakEvenROI(dmath.D(r.EntryFee), dmath.D(r.ExitFee), r.Leverage, dmath.D(r.SafetyBufferROI)))
}

type BacktestConfig struct {
	PeriodsPerYear float64 `yaml:"periods_per_year"`
	CandleLimit    int     `yaml:"candle_limit"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type ExchangeConfig struct {
	RESTEndpoint string `yaml:"rest_endpoint"`
	WSEndpoint   string `yaml:"ws_endpoint"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every structural problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	enabled := 0
	for kind, ic := range c.Indicators {
		if _, err := domain.ParseIndicatorKind(string(kind)); err != nil {
			fail("indicators: %v", err)
			continue
		}
		if !finite(ic.Weight) || ic.Weight < 0 {
			fail("indicators.%s.weight must be a non-negative number", kind)
		}
		if ic.Enabled && ic.Weight > 0 {
			enabled++
		}
		// ema_trend also drives the trend regime, so it is checked even when disabled
		if (ic.Enabled && ic.Weight > 0) || kind == domain.IndicatorEMATrend {
			for _, problem := range paramProblems(kind, ic) {
				fail("indicators.%s.%s", kind, problem)
			}
		}
	}
	if enabled == 0 {
		fail("indicators: no enabled indicator with a positive weight")
	}

	s := c.Scoring
	for _, st := range []domain.Strength{domain.StrengthWeak, domain.StrengthModerate, domain.StrengthStrong, domain.StrengthVeryStrong, domain.StrengthExtreme} {
		if v, ok := s.StrengthMultipliers[st]; !ok || !finite(v) || v <= 0 {
			fail("scoring.strength_multipliers.%s must be positive", st)
		}
	}
	for st := range s.StrengthMultipliers {
		if !st.Valid() {
			fail("scoring.strength_multipliers: unknown strength %q", st)
		}
	}
	for _, cat := range allCategories {
		if v, ok := s.TypeMultipliers[cat]; !ok || !finite(v) || v <= 0 {
			fail("scoring.type_multipliers.%s must be positive", cat)
		}
	}
	for cat := range s.TypeMultipliers {
		if !knownCategory(cat) {
			fail("scoring.type_multipliers: unknown category %q", cat)
		}
	}
	if s.IndicatorScoreCap <= 0 || s.MicrostructureCap < 0 || s.TotalScoreCap <= 0 {
		fail("scoring caps must be positive")
	}
	if s.AuthorizeThreshold < 0 {
		fail("scoring.authorize_threshold must not be negative")
	}
	if len(s.Tiers) == 0 {
		fail("scoring.tiers must not be empty")
	}
	for i, band := range s.Tiers {
		if band.Min <= 0 || !finite(band.Min) {
			fail("scoring.tiers[%d].min must be positive", i)
		}
		if i > 0 && band.Min >= s.Tiers[i-1].Min {
			fail("scoring.tiers must be strictly descending (index %d)", i)
		}
		if band.Buy == "" || band.Sell == "" {
			fail("scoring.tiers[%d] needs buy and sell names", i)
		}
	}
	if s.Microstructure.BuySellWeight < 0 || s.Microstructure.DOMWeight < 0 {
		fail("scoring.microstructure weights must not be negative")
	}

	cc := c.Confidence
	if cc.ChopPenalty < 0 || cc.VolPenaltyMedium < 0 || cc.VolPenaltyHigh < 0 || cc.PerConflictPenalty < 0 {
		fail("confidence penalties must not be negative")
	}
	if cc.VolHighThreshold <= cc.VolMediumThreshold {
		fail("confidence.vol_high_threshold must exceed vol_medium_threshold")
	}

	g := c.Gate
	if g.DeadZoneMin < 0 || g.ThresholdScore < 0 || g.MinConfidence < 0 || g.MinIndicators < 0 || g.MaxDrawdownPct < 0 {
		fail("gate thresholds must not be negative")
	}
	if g.MinConfluence < 0 || g.MinConfluence > 1 {
		fail("gate.min_confluence must be within [0,1]")
	}
	if g.SurchargeHighATR <= g.SurchargeMediumATR {
		fail("gate.surcharge_high_atr must exceed surcharge_medium_atr")
	}

	r := c.Risk
	if r.InitialBalance <= 0 {
		fail("risk.initial_balance must be positive")
	}
	if r.PositionSizePct <= 0 || r.PositionSizePct > 100 {
		fail("risk.position_size_pct must be within (0,100]")
	}
	if r.Leverage < 1 {
		fail("risk.leverage must be at least 1")
	}
	if r.StopLossROI <= 0 || r.TakeProfitROI <= 0 {
		fail("risk.stop_loss_roi and take_profit_roi must be positive")
	}
	if r.EntryFee < 0 || r.ExitFee < 0 || r.SlippagePct < 0 || r.SafetyBufferROI < 0 {
		fail("risk fees, slippage and safety buffer must not be negative")
	}
	if r.BreakEvenBufferROI < 0 {
		fail("risk.break_even_buffer_roi must not be negative")
	}
	if floor := r.BreakEvenFloor(); r.BreakEvenActivationROI < floor {
		fail("risk.break_even_activation_roi %.4f is below the fee floor %.4f", r.BreakEvenActivationROI, floor)
	}
	if r.TrailingEnabled && (r.TrailingDistanceROI <= 0 || r.TrailingActivationROI <= 0) {
		fail("risk trailing activation and distance must be positive when trailing is enabled")
	}
	if r.TrailingStepROI < 0 {
		fail("risk.trailing_step_roi must not be negative")
	}

	if c.Backtest.PeriodsPerYear < 0 {
		fail("backtest.periods_per_year must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Clone deep-copies maps and slices.
func (c Config) Clone() Config {
	out := c
	out.Indicators = make(IndicatorTable, len(c.Indicators))
	for k, v := range c.Indicators {
		if v.Params != nil {
			params := make(map[string]float64, len(v.Params))
			for pk, pv := range v.Params {
				params[pk] = pv
			}
			v.Params = params
		}
		out.Indicators[k] = v
	}
	out.Scoring.StrengthMultipliers = make(map[domain.Strength]float64, len(c.Scoring.StrengthMultipliers))
	for k, v := range c.Scoring.StrengthMultipliers {
		out.Scoring.StrengthMultipliers[k] = v
	}
	out.Scoring.TypeMultipliers = make(map[domain.SignalCategory]float64, len(c.Scoring.TypeMultipliers))
	for k, v := range c.Scoring.TypeMultipliers {
		out.Scoring.TypeMultipliers[k] = v
	}
	out.Scoring.Tiers = append([]TierBand(nil), c.Scoring.Tiers...)
	return out
}

var allCategories = []domain.SignalCategory{
	domain.CategoryDivergence,
	domain.CategoryCrossover,
	domain.CategoryPattern,
	domain.CategoryBreakout,
	domain.CategoryThrust,
	domain.CategoryZone,
	domain.CategoryMomentum,
	domain.CategoryHook,
	domain.CategoryLevel,
}

func knownCategory(c domain.SignalCategory) bool {
	for _, k := range allCategories {
		if k == c {
			return true
		}
	}
	return false
}

// paramProblems checks one indicator's period and params after defaults apply.
func paramProblems(kind domain.IndicatorKind, ic IndicatorConfig) []string {
	var out []string
	if ic.Period < 0 {
		out = append(out, "period must not be negative")
	}
	known := ParamDefaults[kind]
	for name, v := range ic.Params {
		if _, ok := known[name]; !ok {
			out = append(out, fmt.Sprintf("params: unknown param %q", name))
		} else if !finite(v) {
			out = append(out, fmt.Sprintf("params.%s must be a number", name))
		}
	}
	if len(out) > 0 {
		return out
	}

	whole := func(name string, least float64) {
		if v := ic.Setting(kind, name); v < least || v != math.Trunc(v) {
			out = append(out, fmt.Sprintf("params.%s must be a whole number >= %g", name, least))
		}
	}
	ordered := func(low, high string) {
		if ic.Setting(kind, low) >= ic.Setting(kind, high) {
			out = append(out, fmt.Sprintf("params.%s must be below %s", low, high))
		}
	}

	switch kind {
	case domain.IndicatorRSI, domain.IndicatorWilliamsR:
		ordered("oversold", "overbought")
	case domain.IndicatorMACD:
		whole("fast", 1)
		whole("slow", 2)
		whole("signal", 1)
		ordered("fast", "slow")
	case domain.IndicatorStochastic:
		whole("smooth", 1)
		ordered("oversold", "overbought")
	case domain.IndicatorBollinger:
		if ic.Setting(kind, "stddev") <= 0 {
			out = append(out, "params.stddev must be positive")
		}
	case domain.IndicatorEMATrend:
		whole("fast", 1)
		whole("slow", 2)
		ordered("fast", "slow")
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
