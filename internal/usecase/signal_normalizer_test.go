package usecase_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sig(typ string, dir domain.Direction, st domain.Strength) domain.Signal {
	return domain.Signal{Type: typ, Direction: dir, Strength: st, Message: typ}
}

func newNormalizer(t *testing.T, mutate func(*config.Config)) *usecase.SignalNormalizer {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	n, err := usecase.NewSignalNormalizer(cfg, nil)
	require.NoError(t, err)
	return n
}

func TestSignalNormalizer_SingleCrossover(t *testing.T) {
	n := newNormalizer(t, nil)

	// 28 * 1.4 * 1.3
	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorWilliamsR: domain.Enhanced(-85,
			sig("bullish_crossover", domain.DirectionBullish, domain.StrengthVeryStrong)),
	}
	out := n.Score(results, nil, t0)

	assert.InDelta(t, 50.96, out.IndicatorScore, 1e-9)
	assert.InDelta(t, 50.96, out.CompositeScore, 1e-9)
	assert.Equal(t, domain.TierBuy, out.SignalStrength)
	assert.Equal(t, domain.SideLong, out.Side)
	assert.Equal(t, 1, out.BullishCount)
	assert.Equal(t, 1, out.ActiveIndicators)
	assert.Equal(t, "bullish_crossover", out.SignalType)
}

func TestSignalNormalizer_PriorityResolution(t *testing.T) {
	n := newNormalizer(t, nil)

	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorRSI: domain.Enhanced(25,
			sig("oversold_zone", domain.DirectionBullish, domain.StrengthExtreme),
			sig("bearish_divergence", domain.DirectionBearish, domain.StrengthWeak),
		),
	}
	out := n.Score(results, nil, t0)

	// divergence outranks zone: -(25 * 0.4 * 1.5)
	assert.InDelta(t, -15.0, out.IndicatorScores[domain.IndicatorRSI], 1e-9)
	assert.Equal(t, 1, out.BearishCount)
}

func TestResolveSignal_TieKeepsFirst(t *testing.T) {
	first := sig("bullish_crossover", domain.DirectionBullish, domain.StrengthWeak)
	second := sig("bearish_breakout", domain.DirectionBearish, domain.StrengthExtreme)

	got, ok := usecase.ResolveSignal([]domain.Signal{first, second})
	require.True(t, ok)
	assert.Equal(t, first, got)

	_, ok = usecase.ResolveSignal(nil)
	assert.False(t, ok)
}

func TestSignalNormalizer_SkipsMalformed(t *testing.T) {
	n := newNormalizer(t, nil)

	bad := sig("bullish_crossover", domain.DirectionBullish, domain.Strength("huge"))
	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorRSI:       domain.Enhanced(50, bad),
		domain.IndicatorWilliamsR: domain.Enhanced(-85, sig("bullish_crossover", domain.DirectionBullish, domain.StrengthStrong)),
	}
	out := n.Score(results, nil, t0)

	require.Len(t, out.Skipped, 1)
	assert.Contains(t, out.Skipped[0], "strength")
	assert.Equal(t, 1, out.ActiveIndicators)
	_, scored := out.IndicatorScores[domain.IndicatorRSI]
	assert.False(t, scored)
}

func TestValidateSignal(t *testing.T) {
	tests := []struct {
		name  string
		sig   domain.Signal
		field string
	}{
		{"Missing type", domain.Signal{Direction: domain.DirectionBullish, Strength: domain.StrengthWeak, Message: "m"}, "type"},
		{"Bad direction", domain.Signal{Type: "x", Direction: "up", Strength: domain.StrengthWeak, Message: "m"}, "direction"},
		{"Bad strength", domain.Signal{Type: "x", Direction: domain.DirectionBullish, Strength: "max", Message: "m"}, "strength"},
		{"Missing message", domain.Signal{Type: "x", Direction: domain.DirectionBullish, Strength: domain.StrengthWeak}, "message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := usecase.ValidateSignal(domain.IndicatorMACD, 0, tt.sig)
			var shapeErr *usecase.InvalidSignalShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.field, shapeErr.Field)
			assert.Equal(t, domain.IndicatorMACD, shapeErr.Indicator)
		})
	}

	assert.NoError(t, usecase.ValidateSignal(domain.IndicatorMACD, 0, sig("x", domain.DirectionBearish, domain.StrengthStrong)))
}

func TestSignalNormalizer_DisabledAndZeroWeightIgnored(t *testing.T) {
	n := newNormalizer(t, func(c *config.Config) {
		ic := c.Indicators[domain.IndicatorMACD]
		ic.Weight = 0
		c.Indicators[domain.IndicatorMACD] = ic
	})

	strong := sig("bullish_crossover", domain.DirectionBullish, domain.StrengthStrong)
	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorMACD: domain.Enhanced(1, strong),
		domain.IndicatorOBV:  domain.Enhanced(1, strong), // disabled by default
	}
	out := n.Score(results, nil, t0)

	assert.Equal(t, 0.0, out.CompositeScore)
	assert.Equal(t, 0, out.ActiveIndicators)
	assert.Equal(t, domain.TierNeutral, out.SignalStrength)
	assert.Equal(t, domain.Side(""), out.Side)
}

func TestSignalNormalizer_Legacy(t *testing.T) {
	n := newNormalizer(t, nil)
	score := -50.0

	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorRSI:       {Legacy: &domain.LegacyValue{Score: &score}},
		domain.IndicatorWilliamsR: {Legacy: &domain.LegacyValue{Signal: "BUY"}},
		domain.IndicatorMACD:      {Legacy: &domain.LegacyValue{Signal: "sideways"}},
	}
	out := n.Score(results, nil, t0)

	assert.InDelta(t, -12.5, out.IndicatorScores[domain.IndicatorRSI], 1e-9)
	// 28 * 0.65 * 0.8
	assert.InDelta(t, 14.56, out.IndicatorScores[domain.IndicatorWilliamsR], 1e-9)
	assert.Equal(t, 0.0, out.IndicatorScores[domain.IndicatorMACD])
	assert.Equal(t, 3, out.ActiveIndicators)
}

func TestSignalNormalizer_Caps(t *testing.T) {
	n := newNormalizer(t, func(c *config.Config) {
		for k, ic := range c.Indicators {
			ic.Enabled = true
			ic.Weight = 100
			c.Indicators[k] = ic
		}
		c.Scoring.Microstructure.BuySellWeight = 30
	})

	results := map[domain.IndicatorKind]domain.IndicatorResult{}
	for _, k := range domain.IndicatorKinds {
		results[k] = domain.Enhanced(0, sig("bearish_divergence", domain.DirectionBearish, domain.StrengthVeryStrong))
	}
	micro := &domain.Microstructure{
		BuySellRatio: &domain.RatioReading{Ratio: 0.01, Live: true, At: t0},
		DOMImbalance: &domain.ImbalanceReading{Value: -5, Live: true, At: t0},
	}
	out := n.Score(results, micro, t0)

	assert.Equal(t, -200.0, out.IndicatorScore)
	assert.Equal(t, -20.0, out.MicrostructureScore)
	assert.Equal(t, -220.0, out.CompositeScore)
	assert.Equal(t, domain.TierExtremeSell, out.SignalStrength)
	assert.Equal(t, domain.SideShort, out.Side)
}

func TestSignalNormalizer_Microstructure(t *testing.T) {
	n := newNormalizer(t, nil)

	t.Run("Live and fresh", func(t *testing.T) {
		m := &domain.Microstructure{
			BuySellRatio: &domain.RatioReading{Ratio: 3, Live: true, At: t0.Add(-time.Minute)},
			DOMImbalance: &domain.ImbalanceReading{Value: 0.25, Live: true, At: t0},
		}
		// (3-1)/(3+1)*10 + 0.25*10
		assert.InDelta(t, 7.5, n.MicrostructureScore(m, t0), 1e-9)
	})

	t.Run("Not live", func(t *testing.T) {
		m := &domain.Microstructure{
			BuySellRatio: &domain.RatioReading{Ratio: 3, Live: false, At: t0},
		}
		assert.Equal(t, 0.0, n.MicrostructureScore(m, t0))
	})

	t.Run("Stale", func(t *testing.T) {
		m := &domain.Microstructure{
			DOMImbalance: &domain.ImbalanceReading{Value: 0.5, Live: true, At: t0.Add(-5 * time.Minute)},
		}
		assert.Equal(t, 0.0, n.MicrostructureScore(m, t0))
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Equal(t, 0.0, n.MicrostructureScore(nil, t0))
	})
}

func TestSignalNormalizer_ClassifyIsTotal(t *testing.T) {
	n := newNormalizer(t, nil)

	tests := []struct {
		score float64
		want  domain.Tier
	}{
		{220, domain.TierExtremeBuy},
		{130, domain.TierExtremeBuy},
		{129.99, domain.TierStrongBuy},
		{90, domain.TierStrongBuy},
		{50, domain.TierBuy},
		{20, domain.TierWeakBuy},
		{19.99, domain.TierNeutral},
		{0, domain.TierNeutral},
		{-20, domain.TierWeakSell},
		{-50, domain.TierSell},
		{-90, domain.TierStrongSell},
		{-130, domain.TierExtremeSell},
		{math.Inf(-1), domain.TierExtremeSell},
		{math.NaN(), domain.TierNeutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.Classify(tt.score), "score %v", tt.score)
	}
}

func TestSignalNormalizer_Deterministic(t *testing.T) {
	n := newNormalizer(t, nil)
	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorRSI:        domain.Enhanced(25, sig("bullish_divergence", domain.DirectionBullish, domain.StrengthStrong)),
		domain.IndicatorMACD:       domain.Enhanced(1, sig("bullish_crossover", domain.DirectionBullish, domain.StrengthModerate)),
		domain.IndicatorWilliamsR:  domain.Enhanced(-90, sig("oversold_zone", domain.DirectionBullish, domain.StrengthWeak)),
		domain.IndicatorStochastic: domain.Enhanced(85, sig("bearish_hook", domain.DirectionBearish, domain.StrengthModerate)),
		domain.IndicatorBollinger:  domain.Enhanced(0.1, sig("lower_band_breakout", domain.DirectionBullish, domain.StrengthStrong)),
		domain.IndicatorEMATrend:   domain.Enhanced(1, sig("bullish_trend_momentum", domain.DirectionBullish, domain.StrengthModerate)),
	}

	first := n.Score(results, nil, t0)
	for i := 0; i < 50; i++ {
		again := n.Score(results, nil, t0)
		require.Equal(t, first.CompositeScore, again.CompositeScore)
		require.Equal(t, first.Confidence, again.Confidence)
	}
	assert.Equal(t, 5, first.BullishCount)
	assert.Equal(t, 1, first.BearishCount)
	assert.Equal(t, 5, first.Confirmations)
}

func TestSignalNormalizer_BaseConfidence(t *testing.T) {
	n := newNormalizer(t, nil)

	// One bullish indicator, one signal: 1.0*50 + 15 (|50.96| >= 50) + 0.5*20
	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorWilliamsR: domain.Enhanced(-85,
			sig("bullish_crossover", domain.DirectionBullish, domain.StrengthVeryStrong)),
	}
	assert.InDelta(t, 75.0, n.Score(results, nil, t0).Confidence, 1e-9)

	assert.Equal(t, 0.0, n.Score(nil, nil, t0).Confidence)
}

func TestSignalNormalizer_BaseConfidenceFollowsTiers(t *testing.T) {
	n := newNormalizer(t, func(c *config.Config) {
		c.Scoring.Tiers = []config.TierBand{
			{Buy: domain.TierExtremeBuy, Sell: domain.TierExtremeSell, Min: 100},
			{Buy: domain.TierBuy, Sell: domain.TierSell, Min: 40},
		}
	})

	results := map[domain.IndicatorKind]domain.IndicatorResult{
		domain.IndicatorWilliamsR: domain.Enhanced(-85,
			sig("bullish_crossover", domain.DirectionBullish, domain.StrengthVeryStrong)),
	}
	// 50.96 lands in the second band: 50 + 22 + 10
	out := n.Score(results, nil, t0)
	assert.Equal(t, domain.TierBuy, out.SignalStrength)
	assert.InDelta(t, 82.0, out.Confidence, 1e-9)
}

func TestNewSignalNormalizer_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Scoring.TotalScoreCap = -1
	_, err := usecase.NewSignalNormalizer(cfg, nil)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
