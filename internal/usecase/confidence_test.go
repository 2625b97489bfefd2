package usecase_test

import (
	"math"
	"testing"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"github.com/stretchr/testify/assert"
)

func TestConfidenceCalculator_Adjust(t *testing.T) {
	calc := usecase.NewConfidenceCalculator(config.Default().Confidence)

	tests := []struct {
		name string
		base float64
		ctx  usecase.ConfidenceContext
		want float64
	}{
		{"No penalties", 80, usecase.ConfidenceContext{ATRPercent: 1}, 80},
		{"Choppy and high volatility", 80, usecase.ConfidenceContext{IsChoppy: true, ATRPercent: 7}, 69},
		{"High band is inclusive", 80, usecase.ConfidenceContext{ATRPercent: 6}, 74},
		{"Medium volatility", 80, usecase.ConfidenceContext{ATRPercent: 4}, 77},
		{"Conflicts use the minority side", 80, usecase.ConfidenceContext{BullishCount: 5, BearishCount: 2}, 72},
		{"Clamped at zero", 5, usecase.ConfidenceContext{IsChoppy: true, ATRPercent: 9, BullishCount: 3, BearishCount: 3}, 0},
		{"Clamped at hundred", 140, usecase.ConfidenceContext{}, 100},
		{"NaN base", math.NaN(), usecase.ConfidenceContext{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.Adjust(tt.base, tt.ctx), 1e-9)
		})
	}
}
