package usecase

import (
	"math"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"go.uber.org/zap"
)

// DecisionContext carries the state that lives outside one scoring pass.
type DecisionContext struct {
	Symbol      string
	Timestamp   time.Time
	PrevScore   *float64
	IsChoppy    bool
	ATRPercent  float64
	Trend       domain.Direction
	DrawdownPct float64
}

// SignalGenerator runs scoring, confidence adjustment and gating in sequence.
type SignalGenerator struct {
	normalizer *SignalNormalizer
	confidence *ConfidenceCalculator
	gate       *EntryGate
	threshold  float64
	logger     *zap.Logger
}

func NewSignalGenerator(cfg config.Config, logger *zap.Logger) (*SignalGenerator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizer, err := NewSignalNormalizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &SignalGenerator{
		normalizer: normalizer,
		confidence: NewConfidenceCalculator(cfg.Confidence),
		gate:       NewEntryGate(cfg.Gate),
		threshold:  cfg.Scoring.AuthorizeThreshold,
		logger:     logger,
	}, nil
}

func (g *SignalGenerator) Normalizer() *SignalNormalizer { return g.normalizer }

// Generate scores the inputs and decides authorization. Side is set for any
// directional tier, authorized or not.
func (g *SignalGenerator) Generate(results map[domain.IndicatorKind]domain.IndicatorResult, micro *domain.Microstructure, ctx DecisionContext) domain.CompositeSignal {
	sig := g.normalizer.Score(results, micro, ctx.Timestamp)
	sig.Symbol = ctx.Symbol

	sig.Confidence = g.confidence.Adjust(sig.Confidence, ConfidenceContext{
		IsChoppy:     ctx.IsChoppy,
		ATRPercent:   ctx.ATRPercent,
		BullishCount: sig.BullishCount,
		BearishCount: sig.BearishCount,
	})

	res := g.gate.Evaluate(GateContext{
		Score:              sig.CompositeScore,
		PrevScore:          ctx.PrevScore,
		Confidence:         sig.Confidence,
		AgreeingIndicators: sig.Confirmations,
		TotalIndicators:    sig.ActiveIndicators,
		Trend:              ctx.Trend,
		ATRPercent:         ctx.ATRPercent,
		DrawdownPct:        ctx.DrawdownPct,
	})
	sig.GateApplied = res.Applied

	reasons := res.Reasons
	sig.ThresholdUsed = g.threshold
	if res.Applied {
		sig.ThresholdUsed = res.ThresholdUsed
	}
	// the authorize threshold holds even when the gate runs with a lower one;
	// a gate threshold at or above it already reports min_score
	if math.Abs(sig.CompositeScore) < g.threshold && (!res.Applied || res.ThresholdUsed < g.threshold) {
		reasons = append(reasons, ReasonBelowThreshold)
	}
	if sig.SignalStrength == domain.TierNeutral || sig.Side == "" {
		reasons = append(reasons, ReasonNoDirection)
	}
	sig.BlockReasons = reasons
	sig.Authorized = len(reasons) == 0

	if sig.Authorized {
		g.logger.Info("Entry authorized",
			zap.String("symbol", sig.Symbol),
			zap.String("side", string(sig.Side)),
			zap.Float64("score", sig.CompositeScore),
			zap.Float64("confidence", sig.Confidence),
			zap.String("tier", string(sig.SignalStrength)),
		)
	} else {
		g.logger.Debug("Entry blocked",
			zap.String("symbol", sig.Symbol),
			zap.Float64("score", sig.CompositeScore),
			zap.Strings("reasons", reasons),
		)
	}
	return sig
}
