package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/pkg/dmath"
	"go.uber.org/zap"
)

// InvalidSignalShapeError names the indicator and field of a malformed signal.
type InvalidSignalShapeError struct {
	Indicator domain.IndicatorKind
	Index     int
	Field     string
}

func (e *InvalidSignalShapeError) Error() string {
	return fmt.Sprintf("invalid signal shape: indicator %s signal %d field %s", e.Indicator, e.Index, e.Field)
}

// SignalNormalizer folds indicator results into one bounded composite score.
type SignalNormalizer struct {
	cfg    config.Config
	logger *zap.Logger
}

func NewSignalNormalizer(cfg config.Config, logger *zap.Logger) (*SignalNormalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalNormalizer{cfg: cfg.Clone(), logger: logger}, nil
}

// ValidateSignal checks the required fields of one signal.
func ValidateSignal(kind domain.IndicatorKind, idx int, s domain.Signal) error {
	switch {
	case strings.TrimSpace(s.Type) == "":
		return &InvalidSignalShapeError{Indicator: kind, Index: idx, Field: "type"}
	case !s.Direction.Valid():
		return &InvalidSignalShapeError{Indicator: kind, Index: idx, Field: "direction"}
	case !s.Strength.Valid():
		return &InvalidSignalShapeError{Indicator: kind, Index: idx, Field: "strength"}
	case strings.TrimSpace(s.Message) == "":
		return &InvalidSignalShapeError{Indicator: kind, Index: idx, Field: "message"}
	}
	return nil
}

// ResolveSignal picks the highest-priority signal. Ties keep emission order.
func ResolveSignal(signals []domain.Signal) (domain.Signal, bool) {
	if len(signals) == 0 {
		return domain.Signal{}, false
	}
	best := signals[0]
	bestPrio := domain.CategoryOf(best.Type).Priority()
	for _, s := range signals[1:] {
		if p := domain.CategoryOf(s.Type).Priority(); p < bestPrio {
			best, bestPrio = s, p
		}
	}
	return best, true
}

// Contribution is weight x strength x type x sign for one resolved signal.
func (n *SignalNormalizer) Contribution(weight float64, s domain.Signal) float64 {
	sm := n.cfg.Scoring.StrengthMultipliers[s.Strength]
	tm := n.cfg.Scoring.TypeMultipliers[domain.CategoryOf(s.Type)]
	return dmath.Finite(weight * sm * tm * s.Direction.Sign())
}

func (n *SignalNormalizer) legacyContribution(weight float64, lv *domain.LegacyValue) float64 {
	if lv.Score != nil {
		return weight * dmath.Clamp(*lv.Score/100, -1, 1)
	}
	var sign float64
	switch strings.ToLower(strings.TrimSpace(lv.Signal)) {
	case "bullish", "buy", "long":
		sign = 1
	case "bearish", "sell", "short":
		sign = -1
	default:
		return 0
	}
	return sign * weight *
		n.cfg.Scoring.StrengthMultipliers[domain.StrengthModerate] *
		n.cfg.Scoring.TypeMultipliers[domain.CategoryLevel]
}

// Classify maps any score to exactly one tier.
func (n *SignalNormalizer) Classify(score float64) domain.Tier {
	return classify(n.cfg.Scoring.Tiers, score)
}

func classify(bands []config.TierBand, score float64) domain.Tier {
	if math.IsNaN(score) {
		return domain.TierNeutral
	}
	for _, b := range bands {
		if score >= b.Min {
			return b.Buy
		}
		if score <= -b.Min {
			return b.Sell
		}
	}
	return domain.TierNeutral
}

// MicrostructureScore sums the live, fresh order-flow readings and clamps them.
func (n *SignalNormalizer) MicrostructureScore(m *domain.Microstructure, at time.Time) float64 {
	if m == nil {
		return 0
	}
	mc := n.cfg.Scoring.Microstructure
	fresh := func(readAt time.Time) bool {
		if mc.MaxAge <= 0 || at.IsZero() || readAt.IsZero() {
			return true
		}
		return at.Sub(readAt) <= mc.MaxAge
	}

	var sum float64
	if r := m.BuySellRatio; r != nil && r.Live && fresh(r.At) {
		ratio := dmath.Finite(r.Ratio)
		if ratio > 0 {
			sum += (ratio - 1) / (ratio + 1) * mc.BuySellWeight
		}
	}
	if d := m.DOMImbalance; d != nil && d.Live && fresh(d.At) {
		sum += dmath.Clamp(d.Value, -1, 1) * mc.DOMWeight
	}
	capv := n.cfg.Scoring.MicrostructureCap
	return dmath.Clamp(sum, -capv, capv)
}

// Score runs one scoring pass. It never fails: malformed indicators are
// skipped and listed in Skipped.
func (n *SignalNormalizer) Score(results map[domain.IndicatorKind]domain.IndicatorResult, micro *domain.Microstructure, at time.Time) domain.CompositeSignal {
	out := domain.CompositeSignal{
		IndicatorScores: make(map[domain.IndicatorKind]float64),
		BlockReasons:    []string{},
		SignalStrength:  domain.TierNeutral,
		Timestamp:       at,
	}

	var indicatorSum float64
	var emitted int
	var topAbs float64
	for _, kind := range domain.IndicatorKinds {
		ic, ok := n.cfg.Indicators[kind]
		if !ok || !ic.Enabled || ic.Weight <= 0 {
			continue
		}
		res, ok := results[kind]
		if !ok {
			continue
		}

		contribution, sigType, count, err := n.indicatorContribution(kind, ic.Weight, res)
		if err != nil {
			n.logger.Warn("Skipping indicator with malformed signal", zap.String("indicator", string(kind)), zap.Error(err))
			out.Skipped = append(out.Skipped, err.Error())
			continue
		}

		out.ActiveIndicators++
		emitted += count
		out.IndicatorScores[kind] = contribution
		indicatorSum += contribution
		switch {
		case contribution > 0:
			out.BullishCount++
		case contribution < 0:
			out.BearishCount++
		}
		if a := math.Abs(contribution); a > topAbs {
			topAbs = a
			out.SignalType = sigType
		}
	}

	icap := n.cfg.Scoring.IndicatorScoreCap
	tcap := n.cfg.Scoring.TotalScoreCap
	out.IndicatorScore = dmath.Clamp(indicatorSum, -icap, icap)
	out.MicrostructureScore = n.MicrostructureScore(micro, at)
	out.CompositeScore = dmath.Clamp(out.IndicatorScore+out.MicrostructureScore, -tcap, tcap)

	out.SignalStrength = n.Classify(out.CompositeScore)
	if out.SignalStrength != domain.TierNeutral {
		out.Side = domain.SideFor(out.Direction())
	}
	switch out.Direction() {
	case domain.DirectionBullish:
		out.Confirmations = out.BullishCount
	case domain.DirectionBearish:
		out.Confirmations = out.BearishCount
	}
	out.Confidence = n.baseConfidence(out, emitted)
	return out
}

func (n *SignalNormalizer) indicatorContribution(kind domain.IndicatorKind, weight float64, res domain.IndicatorResult) (float64, string, int, error) {
	if res.IsLegacy() {
		c := dmath.Finite(n.legacyContribution(weight, res.Legacy))
		count := 0
		if c != 0 {
			count = 1
		}
		return c, "legacy", count, nil
	}
	for i, s := range res.Signals {
		if err := ValidateSignal(kind, i, s); err != nil {
			return 0, "", 0, err
		}
	}
	best, ok := ResolveSignal(res.Signals)
	if !ok {
		return 0, "", 0, nil
	}
	return n.Contribution(weight, best), best.Type, len(res.Signals), nil
}

// bandPoints is the confidence credit per tier band, strongest band first.
// Bands past the end of the list earn the last entry.
var bandPoints = []float64{30, 22, 15, 8}

// magnitudePoints credits a score by the tier band it reaches.
func magnitudePoints(bands []config.TierBand, score float64) float64 {
	abs := math.Abs(score)
	for i, b := range bands {
		if abs >= b.Min {
			return bandPoints[min(i, len(bandPoints)-1)]
		}
	}
	return 0
}

// baseConfidence blends indicator agreement, score magnitude and signal density.
func (n *SignalNormalizer) baseConfidence(c domain.CompositeSignal, emitted int) float64 {
	if c.ActiveIndicators == 0 {
		return 0
	}
	var agreement float64
	if voted := c.BullishCount + c.BearishCount; voted > 0 {
		agreement = float64(max(c.BullishCount, c.BearishCount)) / float64(voted)
	}

	magnitude := magnitudePoints(n.cfg.Scoring.Tiers, c.CompositeScore)

	capacity := 2 * c.ActiveIndicators
	density := float64(min(emitted, capacity)) / float64(capacity)

	return dmath.Clamp(agreement*50+magnitude+density*20, 0, 100)
}
