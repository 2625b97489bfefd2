package domain

import (
	"fmt"
	"strings"
	"time"
)

type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionFlat    Direction = ""
)

// Sign returns +1 for bullish, -1 for bearish and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionBullish:
		return 1
	case DirectionBearish:
		return -1
	}
	return 0
}

func (d Direction) Valid() bool {
	return d == DirectionBullish || d == DirectionBearish
}

type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthModerate   Strength = "moderate"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
	StrengthExtreme    Strength = "extreme"
)

func (s Strength) Valid() bool {
	switch s {
	case StrengthWeak, StrengthModerate, StrengthStrong, StrengthVeryStrong, StrengthExtreme:
		return true
	}
	return false
}

// SignalCategory is the semantic family of a signal type, used for priority ranking.
type SignalCategory string

const (
	CategoryDivergence SignalCategory = "divergence"
	CategoryCrossover  SignalCategory = "crossover"
	CategoryPattern    SignalCategory = "pattern"
	CategoryBreakout   SignalCategory = "breakout"
	CategoryThrust     SignalCategory = "thrust"
	CategoryZone       SignalCategory = "zone"
	CategoryMomentum   SignalCategory = "momentum"
	CategoryHook       SignalCategory = "hook"
	CategoryLevel      SignalCategory = "level"
)

// categoryMatchOrder is checked in order, so "divergence" wins over "zone" in a
// type such as "bullish_divergence_zone".
var categoryMatchOrder = []SignalCategory{
	CategoryDivergence,
	CategoryCrossover,
	CategoryPattern,
	CategoryBreakout,
	CategoryThrust,
	CategoryZone,
	CategoryMomentum,
	CategoryHook,
	CategoryLevel,
}

// CategoryOf resolves a signal type like "bullish_crossover" to its category.
// Unrecognised types fall back to the level category (lowest priority).
func CategoryOf(signalType string) SignalCategory {
	t := strings.ToLower(signalType)
	for _, c := range categoryMatchOrder {
		if strings.Contains(t, string(c)) {
			return c
		}
	}
	if strings.Contains(t, "cross") {
		return CategoryCrossover
	}
	return CategoryLevel
}

// Priority returns the ranking tier of the category, 1 being the highest.
func (c SignalCategory) Priority() int {
	switch c {
	case CategoryDivergence:
		return 1
	case CategoryCrossover, CategoryPattern, CategoryBreakout, CategoryThrust:
		return 2
	case CategoryZone, CategoryMomentum, CategoryHook:
		return 3
	}
	return 4
}

// Signal is a single directional observation emitted by an indicator.
type Signal struct {
	Type      string                 `json:"type"`
	Direction Direction              `json:"direction"`
	Strength  Strength               `json:"strength"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type IndicatorKind string

const (
	IndicatorRSI        IndicatorKind = "rsi"
	IndicatorMACD       IndicatorKind = "macd"
	IndicatorWilliamsR  IndicatorKind = "williams_r"
	IndicatorStochRSI   IndicatorKind = "stoch_rsi"
	IndicatorStochastic IndicatorKind = "stochastic"
	IndicatorBollinger  IndicatorKind = "bollinger"
	IndicatorEMATrend   IndicatorKind = "ema_trend"
	IndicatorAO         IndicatorKind = "awesome_oscillator"
	IndicatorKDJ        IndicatorKind = "kdj"
	IndicatorOBV        IndicatorKind = "obv"
	IndicatorCMF        IndicatorKind = "cmf"
	IndicatorADX        IndicatorKind = "adx"
)

// IndicatorKinds lists every supported indicator in a fixed order. Scoring
// iterates this slice instead of a map so float sums are reproducible.
var IndicatorKinds = []IndicatorKind{
	IndicatorRSI,
	IndicatorMACD,
	IndicatorWilliamsR,
	IndicatorStochRSI,
	IndicatorStochastic,
	IndicatorBollinger,
	IndicatorEMATrend,
	IndicatorAO,
	IndicatorKDJ,
	IndicatorOBV,
	IndicatorCMF,
	IndicatorADX,
}

func ParseIndicatorKind(s string) (IndicatorKind, error) {
	k := IndicatorKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range IndicatorKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown indicator %q", s)
}

// IndicatorResult is what an indicator hands to the scorer. Exactly one of the
// two shapes is populated: Signals for enhanced indicators, Legacy for the ones
// that only report a bare value.
type IndicatorResult struct {
	Value   *float64     `json:"value,omitempty"`
	Signals []Signal     `json:"signals,omitempty"`
	Legacy  *LegacyValue `json:"legacy,omitempty"`
}

// LegacyValue carries an indicator reading without structured signals.
type LegacyValue struct {
	Signal string   `json:"signal,omitempty"` // bullish|buy|bearish|sell
	Score  *float64 `json:"score,omitempty"`  // -100..100
}

func (r IndicatorResult) IsLegacy() bool {
	return len(r.Signals) == 0 && r.Legacy != nil
}

func Enhanced(value float64, signals ...Signal) IndicatorResult {
	return IndicatorResult{Value: &value, Signals: signals}
}

type RatioReading struct {
	Ratio float64   `json:"ratio"`
	Live  bool      `json:"live"`
	At    time.Time `json:"at"`
}

type ImbalanceReading struct {
	Value float64   `json:"value"`
	Live  bool      `json:"live"`
	At    time.Time `json:"at"`
}

// Microstructure is the optional order-flow input to scoring.
type Microstructure struct {
	BuySellRatio *RatioReading     `json:"buy_sell_ratio,omitempty"`
	DOMImbalance *ImbalanceReading `json:"dom_imbalance,omitempty"`
}

type Tier string

const (
	TierExtremeBuy  Tier = "EXTREME_BUY"
	TierStrongBuy   Tier = "STRONG_BUY"
	TierBuy         Tier = "BUY"
	TierWeakBuy     Tier = "WEAK_BUY"
	TierNeutral     Tier = "NEUTRAL"
	TierWeakSell    Tier = "WEAK_SELL"
	TierSell        Tier = "SELL"
	TierStrongSell  Tier = "STRONG_SELL"
	TierExtremeSell Tier = "EXTREME_SELL"
)

// CompositeSignal is the output of one scoring pass.
type CompositeSignal struct {
	Symbol              string                    `json:"symbol,omitempty"`
	CompositeScore      float64                   `json:"composite_score"`
	IndicatorScore      float64                   `json:"indicator_score"`
	MicrostructureScore float64                   `json:"microstructure_score"`
	Authorized          bool                      `json:"authorized"`
	Side                Side                      `json:"side,omitempty"`
	Confidence          float64                   `json:"confidence"`
	IndicatorScores     map[IndicatorKind]float64 `json:"indicator_scores"`
	BlockReasons        []string                  `json:"block_reasons"`
	Confirmations       int                       `json:"confirmations"`
	BullishCount        int                       `json:"bullish_count"`
	BearishCount        int                       `json:"bearish_count"`
	ActiveIndicators    int                       `json:"active_indicators"`
	SignalStrength      Tier                      `json:"signal_strength"`
	SignalType          string                    `json:"signal_type,omitempty"`
	GateApplied         bool                      `json:"gate_applied"`
	ThresholdUsed       float64                   `json:"threshold_used"`
	Skipped             []string                  `json:"skipped,omitempty"`
	Timestamp           time.Time                 `json:"timestamp"`
}

// Direction reports which way the composite score leans.
func (c CompositeSignal) Direction() Direction {
	switch {
	case c.CompositeScore > 0:
		return DirectionBullish
	case c.CompositeScore < 0:
		return DirectionBearish
	}
	return DirectionFlat
}
