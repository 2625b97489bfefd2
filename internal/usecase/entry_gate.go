package usecase

import (
	"math"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

// Gate block reasons, reported in evaluation order.
const (
	ReasonDeadZone          = "dead_zone"
	ReasonMinScore          = "min_score"
	ReasonThresholdCross    = "threshold_cross"
	ReasonMinConfidence     = "min_confidence"
	ReasonMinIndicators     = "min_indicators"
	ReasonConfluencePercent = "confluence_percent"
	ReasonTrendAlignment    = "trend_alignment"
	ReasonMaxDrawdown       = "max_drawdown"

	// Not gate rules: added by the generator.
	ReasonBelowThreshold = "below_threshold"
	ReasonNoDirection    = "no_direction"
)

// GateContext is everything one gate decision looks at.
type GateContext struct {
	Score              float64
	PrevScore          *float64
	Confidence         float64
	AgreeingIndicators int
	TotalIndicators    int
	Trend              domain.Direction
	ATRPercent         float64
	DrawdownPct        float64
}

type GateResult struct {
	Pass          bool
	Reasons       []string
	ThresholdUsed float64
	Applied       bool
}

// EntryGate decides whether a composite score may open a position. It
// evaluates every rule and reports all violations, not just the first.
type EntryGate struct {
	cfg config.GateConfig
}

func NewEntryGate(cfg config.GateConfig) *EntryGate {
	return &EntryGate{cfg: cfg.Effective()}
}

// Threshold is the score threshold after the volatility surcharge.
func (g *EntryGate) Threshold(atrPercent float64) float64 {
	t := g.cfg.ThresholdScore
	switch {
	case atrPercent >= g.cfg.SurchargeHighATR:
		t += g.cfg.SurchargeHigh
	case atrPercent >= g.cfg.SurchargeMediumATR:
		t += g.cfg.SurchargeMedium
	}
	return t
}

func (g *EntryGate) Evaluate(ctx GateContext) GateResult {
	if !g.cfg.Enabled {
		return GateResult{Pass: true, Reasons: []string{}}
	}

	cfg := g.cfg
	score := ctx.Score
	if math.IsNaN(score) {
		score = 0
	}
	abs := math.Abs(score)
	threshold := g.Threshold(ctx.ATRPercent)
	reasons := []string{}

	if abs < cfg.DeadZoneMin {
		reasons = append(reasons, ReasonDeadZone)
	}
	if abs < threshold {
		reasons = append(reasons, ReasonMinScore)
	}
	if cfg.RequireThresholdCross && !crossedThreshold(ctx.PrevScore, score, threshold) {
		reasons = append(reasons, ReasonThresholdCross)
	}
	if ctx.Confidence < cfg.MinConfidence {
		reasons = append(reasons, ReasonMinConfidence)
	}
	if ctx.AgreeingIndicators < cfg.MinIndicators {
		reasons = append(reasons, ReasonMinIndicators)
	}
	var confluence float64
	if ctx.TotalIndicators > 0 {
		confluence = float64(ctx.AgreeingIndicators) / float64(ctx.TotalIndicators)
	}
	if confluence < cfg.MinConfluence {
		reasons = append(reasons, ReasonConfluencePercent)
	}
	if cfg.RequireTrendAlignment {
		dir := directionOf(score)
		if dir == domain.DirectionFlat || ctx.Trend != dir {
			reasons = append(reasons, ReasonTrendAlignment)
		}
	}
	if cfg.MaxDrawdownPct > 0 && ctx.DrawdownPct > cfg.MaxDrawdownPct {
		reasons = append(reasons, ReasonMaxDrawdown)
	}

	return GateResult{
		Pass:          len(reasons) == 0,
		Reasons:       reasons,
		ThresholdUsed: threshold,
		Applied:       true,
	}
}

// crossedThreshold reports whether score crossed into the threshold band on
// this evaluation. Without a previous score there is no cross.
func crossedThreshold(prev *float64, score, threshold float64) bool {
	if prev == nil {
		return false
	}
	p := *prev
	switch {
	case score >= threshold:
		return p < threshold
	case score <= -threshold:
		return p > -threshold
	}
	return false
}

func directionOf(score float64) domain.Direction {
	switch {
	case score > 0:
		return domain.DirectionBullish
	case score < 0:
		return domain.DirectionBearish
	}
	return domain.DirectionFlat
}
