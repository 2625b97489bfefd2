package indicators

import (
	"math"
	"testing"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCalculateEMA(t *testing.T) {
	ema := CalculateEMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.Equal(t, []float64{0, 0, 2, 3, 4}, ema)

	assert.Equal(t, []float64{0, 0}, CalculateEMA([]float64{1, 2}, 3))
}

func TestCalculateRSI(t *testing.T) {
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	rsi := CalculateRSI(rising, 14)
	assert.Equal(t, 0.0, rsi[13], "not warmed up")
	assert.Equal(t, 100.0, rsi[14])
	assert.Equal(t, 100.0, rsi[19])

	flat := CalculateRSI(constant(20, 50), 14)
	assert.Equal(t, 50.0, flat[19])

	// alternating equal moves sit at the midpoint
	alt := make([]float64, 30)
	for i := range alt {
		alt[i] = 100 + float64(i%2)
	}
	assert.InDelta(t, 50.0, CalculateRSI(alt, 14)[29], 5)
}

func TestCalculateWilliamsR(t *testing.T) {
	highs := []float64{10, 12, 11, 13}
	lows := []float64{8, 9, 9, 10}

	t.Run("Close at high", func(t *testing.T) {
		wr := CalculateWilliamsR(highs, lows, []float64{9, 11, 10, 13}, 3)
		assert.Equal(t, 0.0, wr[3])
	})
	t.Run("Close at low", func(t *testing.T) {
		wr := CalculateWilliamsR(highs, lows, []float64{9, 11, 10, 9}, 3)
		assert.Equal(t, -100.0, wr[3])
	})
	t.Run("Zero range", func(t *testing.T) {
		wr := CalculateWilliamsR(constant(5, 10), constant(5, 10), constant(5, 10), 3)
		assert.Equal(t, -50.0, wr[4])
	})
}

func TestCalculateStochastic(t *testing.T) {
	st := CalculateStochastic(constant(6, 5), constant(6, 5), constant(6, 5), 3, 2)
	assert.Equal(t, 50.0, st.K[5])
	assert.Equal(t, 50.0, st.D[5])
	assert.Equal(t, 0.0, st.D[2], "%D not warmed up")

	st = CalculateStochastic([]float64{2, 4, 6}, []float64{0, 1, 2}, []float64{1, 3, 6}, 3, 1)
	assert.Equal(t, 100.0, st.K[2])
}

func TestCalculateMACD_Flat(t *testing.T) {
	m := CalculateMACD(constant(60, 100), 12, 26, 9)
	for i := 33; i < 60; i++ {
		assert.InDelta(t, 0.0, m.Histogram[i], 1e-9)
		assert.InDelta(t, 0.0, m.Line[i], 1e-9)
	}
}

func TestCalculateMACD_Trend(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	m := CalculateMACD(closes, 12, 26, 9)
	assert.Greater(t, m.Line[79], 0.0)
	assert.Equal(t, 0.0, m.Signal[32], "signal not warmed up")
	assert.NotEqual(t, 0.0, m.Signal[33])
}

func TestCalculateBollingerBands(t *testing.T) {
	bb := CalculateBollingerBands(constant(25, 10), 20, 2)
	assert.Equal(t, 10.0, bb.Upper[24])
	assert.Equal(t, 10.0, bb.Lower[24])

	bb = CalculateBollingerBands([]float64{1, 3}, 2, 1)
	assert.Equal(t, 2.0, bb.Middle[1])
	assert.Equal(t, 3.0, bb.Upper[1])
	assert.Equal(t, 1.0, bb.Lower[1])
}

func TestCalculateATR(t *testing.T) {
	n := 20
	atr := CalculateATR(constant(n, 101), constant(n, 99), constant(n, 100), 14)
	assert.Equal(t, 2.0, atr[13])
	assert.Equal(t, 2.0, atr[19])
}

func TestCalculateChoppiness(t *testing.T) {
	flat := CalculateChoppiness(constant(20, 5), constant(20, 5), constant(20, 5), 14)
	assert.Equal(t, 100.0, flat[19])

	// a clean trend is not choppy
	n := 30
	highs, lows, closes := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 100 + float64(i)
		highs[i] = closes[i] + 0.1
		lows[i] = closes[i] - 0.1
	}
	trend := CalculateChoppiness(highs, lows, closes, 14)
	assert.Less(t, trend[29], ChoppyThreshold)
	assert.False(t, math.IsNaN(trend[29]))
}

func trendCandles(n int, step float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := 100.0
	for i := range out {
		next := price + step
		// small pullback every fourth candle keeps the oscillators moving
		if i%4 == 3 {
			next = price - step/2
		}
		out[i] = domain.Candle{
			Time:   int64(i) * 60_000,
			Open:   price,
			High:   math.Max(price, next) + 0.2,
			Low:    math.Min(price, next) - 0.2,
			Close:  next,
			Volume: 10,
		}
		price = next
	}
	return out
}

func TestBuildSeries(t *testing.T) {
	table := config.Default().Indicators
	candles := trendCandles(120, 1)

	frames := BuildSeries(candles, table)
	require.Len(t, frames, len(candles))

	assert.Empty(t, frames[0].Results, "first frame is warm-up")
	assert.Equal(t, 0.0, frames[0].ATRPercent)

	last := frames[len(frames)-1]
	for _, k := range Supported {
		_, ok := last.Results[k]
		assert.True(t, ok, "missing %s", k)
	}
	assert.Equal(t, domain.DirectionBullish, last.Trend)
	assert.Greater(t, last.ATRPercent, 0.0)

	for _, f := range frames {
		for kind, res := range f.Results {
			for _, s := range res.Signals {
				assert.True(t, s.Direction.Valid(), "%s emitted %+v", kind, s)
				assert.True(t, s.Strength.Valid(), "%s emitted %+v", kind, s)
				assert.NotEmpty(t, s.Message)
			}
		}
	}
}

func TestBuildSeries_SkipsDisabled(t *testing.T) {
	table := config.Default().Indicators
	ic := table[domain.IndicatorRSI]
	ic.Enabled = false
	table[domain.IndicatorRSI] = ic

	frames := BuildSeries(trendCandles(60, 1), table)
	for _, f := range frames {
		_, ok := f.Results[domain.IndicatorRSI]
		require.False(t, ok)
	}
}

func TestBuildSeries_Empty(t *testing.T) {
	assert.Empty(t, BuildSeries(nil, config.Default().Indicators))
	assert.NotNil(t, Latest(nil, config.Default().Indicators).Results)
}

func TestBuildSeries_DegenerateMACDParams(t *testing.T) {
	table := config.Default().Indicators
	ic := table[domain.IndicatorMACD]
	ic.Params = map[string]float64{"fast": 0, "slow": 0, "signal": 0}
	table[domain.IndicatorMACD] = ic

	var frames []domain.IndicatorFrame
	require.NotPanics(t, func() { frames = BuildSeries(trendCandles(60, 1), table) })
	for _, f := range frames {
		if res, ok := f.Results[domain.IndicatorMACD]; ok {
			assert.Empty(t, res.Signals, "flat MACD emits nothing")
		}
	}
}
