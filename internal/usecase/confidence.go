package usecase

import (
	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/pkg/dmath"
)

// ConfidenceContext is the market regime a confidence value is adjusted for.
type ConfidenceContext struct {
	IsChoppy     bool
	ATRPercent   float64
	BullishCount int
	BearishCount int
}

// ConfidenceCalculator applies regime penalties to a base confidence.
type ConfidenceCalculator struct {
	cfg config.ConfidenceConfig
}

func NewConfidenceCalculator(cfg config.ConfidenceConfig) *ConfidenceCalculator {
	return &ConfidenceCalculator{cfg: cfg}
}

// Adjust subtracts the chop, volatility and conflict penalties and clamps
// the result to [0, 100].
func (c *ConfidenceCalculator) Adjust(base float64, ctx ConfidenceContext) float64 {
	adjusted := dmath.Finite(base)
	if ctx.IsChoppy {
		adjusted -= c.cfg.ChopPenalty
	}

	atr := dmath.Finite(ctx.ATRPercent)
	switch {
	case atr >= c.cfg.VolHighThreshold:
		adjusted -= c.cfg.VolPenaltyHigh
	case atr >= c.cfg.VolMediumThreshold:
		adjusted -= c.cfg.VolPenaltyMedium
	}

	// every indicator on the minority side is one conflict
	conflicts := min(ctx.BullishCount, ctx.BearishCount)
	adjusted -= float64(conflicts) * c.cfg.PerConflictPenalty

	return dmath.Clamp(adjusted, 0, 100)
}
