package usecase_test

import (
	"testing"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T, mutate func(*config.Config)) *usecase.SignalGenerator {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := usecase.NewSignalGenerator(cfg, nil)
	require.NoError(t, err)
	return g
}

func crossoverOnly() map[domain.IndicatorKind]domain.IndicatorResult {
	return map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorWilliamsR: domain.Enhanced(-85,
			sig("bullish_crossover", domain.DirectionBullish, domain.StrengthVeryStrong)),
	}
}

func TestSignalGenerator_GateDisabledUsesAuthorizeThreshold(t *testing.T) {
	g := newGenerator(t, func(c *config.Config) { c.Gate.Enabled = false })

	out := g.Generate(crossoverOnly(), nil, usecase.DecisionContext{Symbol: "BTCUSDT", Timestamp: t0})

	assert.True(t, out.Authorized, "reasons %v", out.BlockReasons)
	assert.Equal(t, domain.SideLong, out.Side)
	assert.False(t, out.GateApplied)
	assert.Equal(t, 50.0, out.ThresholdUsed)
	assert.Equal(t, "BTCUSDT", out.Symbol)
	assert.Empty(t, out.BlockReasons)
}

func TestSignalGenerator_BelowAuthorizeThreshold(t *testing.T) {
	g := newGenerator(t, func(c *config.Config) { c.Gate.Enabled = false })

	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorWilliamsR: domain.Enhanced(-85,
			sig("bullish_crossover", domain.DirectionBullish, domain.StrengthModerate)),
	}
	// 28 * 0.65 * 1.3 = 23.66: WEAK_BUY, still has a side
	out := g.Generate(results, nil, usecase.DecisionContext{Timestamp: t0})

	assert.False(t, out.Authorized)
	assert.Equal(t, domain.TierWeakBuy, out.SignalStrength)
	assert.Equal(t, domain.SideLong, out.Side)
	assert.Equal(t, []string{usecase.ReasonBelowThreshold}, out.BlockReasons)
}

func TestSignalGenerator_LowGateThresholdStillNeedsAuthorizeThreshold(t *testing.T) {
	g := newGenerator(t, func(c *config.Config) {
		c.Gate.ThresholdScore = 10
		c.Gate.MinIndicators = 1
		c.Gate.RequireTrendAlignment = false
	})

	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorWilliamsR: domain.Enhanced(-85,
			sig("bullish_crossover", domain.DirectionBullish, domain.StrengthModerate)),
	}
	// 23.66 clears the gate's 10 but not the authorize threshold of 50
	out := g.Generate(results, nil, usecase.DecisionContext{Timestamp: t0, ATRPercent: 1})

	assert.True(t, out.GateApplied)
	assert.Equal(t, 10.0, out.ThresholdUsed)
	assert.False(t, out.Authorized)
	assert.Equal(t, []string{usecase.ReasonBelowThreshold}, out.BlockReasons)

	strong := g.Generate(crossoverOnly(), nil, usecase.DecisionContext{Timestamp: t0, ATRPercent: 1})
	assert.True(t, strong.Authorized, "reasons %v", strong.BlockReasons)
}

func TestSignalGenerator_NoDirection(t *testing.T) {
	g := newGenerator(t, func(c *config.Config) { c.Gate.Enabled = false })

	out := g.Generate(nil, nil, usecase.DecisionContext{Timestamp: t0})

	assert.False(t, out.Authorized)
	assert.Equal(t, domain.TierNeutral, out.SignalStrength)
	assert.Equal(t, []string{usecase.ReasonBelowThreshold, usecase.ReasonNoDirection}, out.BlockReasons)
}

func TestSignalGenerator_GateBlocksWithReasons(t *testing.T) {
	g := newGenerator(t, nil)

	out := g.Generate(crossoverOnly(), nil, usecase.DecisionContext{
		Timestamp: t0,
		Trend:     domain.DirectionBullish,
	})

	assert.False(t, out.Authorized)
	assert.True(t, out.GateApplied)
	assert.Equal(t, domain.SideLong, out.Side, "side is reported even when blocked")
	assert.Equal(t, []string{usecase.ReasonMinIndicators}, out.BlockReasons)
}

func TestSignalGenerator_FullConfluenceAuthorizes(t *testing.T) {
	g := newGenerator(t, nil)

	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorRSI:       domain.Enhanced(25, sig("bullish_divergence", domain.DirectionBullish, domain.StrengthStrong)),
		domain.IndicatorMACD:      domain.Enhanced(1, sig("bullish_crossover", domain.DirectionBullish, domain.StrengthStrong)),
		domain.IndicatorWilliamsR: domain.Enhanced(-85, sig("bullish_crossover", domain.DirectionBullish, domain.StrengthVeryStrong)),
	}
	out := g.Generate(results, nil, usecase.DecisionContext{
		Timestamp:  t0,
		Trend:      domain.DirectionBullish,
		ATRPercent: 1,
	})

	// 37.5 + 32.5 + 50.96
	assert.InDelta(t, 120.96, out.CompositeScore, 1e-9)
	assert.Equal(t, domain.TierStrongBuy, out.SignalStrength)
	assert.True(t, out.Authorized, "reasons %v", out.BlockReasons)
	assert.Equal(t, 3, out.Confirmations)
	assert.Equal(t, 50.0, out.ThresholdUsed)
}

func TestSignalGenerator_ConfidenceAdjusted(t *testing.T) {
	g := newGenerator(t, func(c *config.Config) { c.Gate.Enabled = false })

	plain := g.Generate(crossoverOnly(), nil, usecase.DecisionContext{Timestamp: t0})
	choppy := g.Generate(crossoverOnly(), nil, usecase.DecisionContext{Timestamp: t0, IsChoppy: true, ATRPercent: 7})

	assert.InDelta(t, 75.0, plain.Confidence, 1e-9)
	assert.InDelta(t, 64.0, choppy.Confidence, 1e-9)
}
