package indicators

import (
	"fmt"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

const divergenceLookback = 10

func signal(typ string, dir domain.Direction, st domain.Strength, format string, args ...any) domain.Signal {
	return domain.Signal{Type: typ, Direction: dir, Strength: st, Message: fmt.Sprintf(format, args...)}
}

// zoneStrength is strong once the reading is 10 points past the boundary.
func zoneStrength(distance float64) domain.Strength {
	if distance >= 10 {
		return domain.StrengthStrong
	}
	return domain.StrengthModerate
}

func rsiSignals(rsi, closes []float64, i, warmup int, oversold, overbought float64) []domain.Signal {
	var out []domain.Signal
	v, prev := rsi[i], rsi[i-1]

	switch {
	case v <= oversold:
		out = append(out, signal("oversold_zone", domain.DirectionBullish, zoneStrength(oversold-v), "RSI %.1f below %.0f", v, oversold))
	case v >= overbought:
		out = append(out, signal("overbought_zone", domain.DirectionBearish, zoneStrength(v-overbought), "RSI %.1f above %.0f", v, overbought))
	}

	switch {
	case prev < 50 && v >= 50:
		out = append(out, signal("bullish_momentum", domain.DirectionBullish, domain.StrengthWeak, "RSI crossed above 50"))
	case prev > 50 && v <= 50:
		out = append(out, signal("bearish_momentum", domain.DirectionBearish, domain.StrengthWeak, "RSI crossed below 50"))
	}

	if div, ok := divergence(rsi, closes, i, warmup); ok {
		out = append(out, div)
	}
	return out
}

// divergence compares the current close with the extreme close of the
// lookback window: a lower low with a higher RSI is bullish, a higher high
// with a lower RSI bearish.
func divergence(osc, closes []float64, i, warmup int) (domain.Signal, bool) {
	from := i - divergenceLookback
	if from < warmup {
		return domain.Signal{}, false
	}
	lowIdx, highIdx := from, from
	for j := from; j < i; j++ {
		if closes[j] < closes[lowIdx] {
			lowIdx = j
		}
		if closes[j] > closes[highIdx] {
			highIdx = j
		}
	}
	if closes[i] < closes[lowIdx] && osc[i] > osc[lowIdx] && osc[i] < 50 {
		return signal("bullish_divergence", domain.DirectionBullish, domain.StrengthStrong,
			"price lower low, RSI %.1f above %.1f", osc[i], osc[lowIdx]), true
	}
	if closes[i] > closes[highIdx] && osc[i] < osc[highIdx] && osc[i] > 50 {
		return signal("bearish_divergence", domain.DirectionBearish, domain.StrengthStrong,
			"price higher high, RSI %.1f below %.1f", osc[i], osc[highIdx]), true
	}
	return domain.Signal{}, false
}

func williamsSignals(wr []float64, i int, oversold, overbought float64) []domain.Signal {
	var out []domain.Signal
	v, prev := wr[i], wr[i-1]

	switch {
	case prev <= oversold && v > oversold:
		out = append(out, signal("bullish_crossover", domain.DirectionBullish, domain.StrengthStrong, "%%R %.1f left oversold", v))
	case prev >= overbought && v < overbought:
		out = append(out, signal("bearish_crossover", domain.DirectionBearish, domain.StrengthStrong, "%%R %.1f left overbought", v))
	case v <= oversold:
		out = append(out, signal("oversold_zone", domain.DirectionBullish, zoneStrength(oversold-v), "%%R %.1f oversold", v))
	case v >= overbought:
		out = append(out, signal("overbought_zone", domain.DirectionBearish, zoneStrength(v-overbought), "%%R %.1f overbought", v))
	}

	switch {
	case prev < -50 && v >= -50:
		out = append(out, signal("bullish_midline_cross", domain.DirectionBullish, domain.StrengthWeak, "%%R crossed above -50"))
	case prev > -50 && v <= -50:
		out = append(out, signal("bearish_midline_cross", domain.DirectionBearish, domain.StrengthWeak, "%%R crossed below -50"))
	}
	return out
}

func macdSignals(m MACD, i int) []domain.Signal {
	var out []domain.Signal
	h, prev := m.Histogram[i], m.Histogram[i-1]
	line := m.Line[i]

	switch {
	case prev <= 0 && h > 0:
		st := domain.StrengthModerate
		if line < 0 {
			st = domain.StrengthStrong
		}
		out = append(out, signal("bullish_crossover", domain.DirectionBullish, st, "MACD crossed above signal"))
	case prev >= 0 && h < 0:
		st := domain.StrengthModerate
		if line > 0 {
			st = domain.StrengthStrong
		}
		out = append(out, signal("bearish_crossover", domain.DirectionBearish, st, "MACD crossed below signal"))
	case h > 0 && h > prev:
		out = append(out, signal("bullish_momentum", domain.DirectionBullish, domain.StrengthWeak, "histogram rising"))
	case h < 0 && h < prev:
		out = append(out, signal("bearish_momentum", domain.DirectionBearish, domain.StrengthWeak, "histogram falling"))
	}
	return out
}

func bollingerSignals(bb BollingerBands, closes []float64, i int) (float64, []domain.Signal) {
	width := bb.Upper[i] - bb.Lower[i]
	pctB := 0.5
	if width > 0 {
		pctB = (closes[i] - bb.Lower[i]) / width
	}

	var out []domain.Signal
	prevAbove := closes[i-1] > bb.Upper[i-1]
	prevBelow := closes[i-1] < bb.Lower[i-1]
	switch {
	case pctB < 0 && !prevBelow:
		out = append(out, signal("lower_band_zone", domain.DirectionBullish, domain.StrengthModerate, "close below lower band"))
	case pctB > 1 && !prevAbove:
		out = append(out, signal("upper_band_zone", domain.DirectionBearish, domain.StrengthModerate, "close above upper band"))
	case prevBelow && pctB >= 0:
		out = append(out, signal("bullish_reentry_pattern", domain.DirectionBullish, domain.StrengthStrong, "close back inside from lower band"))
	case prevAbove && pctB <= 1:
		out = append(out, signal("bearish_reentry_pattern", domain.DirectionBearish, domain.StrengthStrong, "close back inside from upper band"))
	}
	return pctB, out
}

func emaTrendSignals(fast, slow []float64, i int) []domain.Signal {
	diff, prev := fast[i]-slow[i], fast[i-1]-slow[i-1]
	switch {
	case prev <= 0 && diff > 0:
		return []domain.Signal{signal("bullish_crossover", domain.DirectionBullish, domain.StrengthStrong, "fast EMA crossed above slow EMA")}
	case prev >= 0 && diff < 0:
		return []domain.Signal{signal("bearish_crossover", domain.DirectionBearish, domain.StrengthStrong, "fast EMA crossed below slow EMA")}
	case diff > 0:
		return []domain.Signal{signal("bullish_trend_momentum", domain.DirectionBullish, domain.StrengthWeak, "fast EMA above slow EMA")}
	case diff < 0:
		return []domain.Signal{signal("bearish_trend_momentum", domain.DirectionBearish, domain.StrengthWeak, "fast EMA below slow EMA")}
	}
	return nil
}

func stochasticSignals(st Stochastic, i int, oversold, overbought float64) []domain.Signal {
	var out []domain.Signal
	k, d := st.K[i], st.D[i]
	pk, pd := st.K[i-1], st.D[i-1]

	switch {
	case pk <= pd && k > d && k < 50:
		s := domain.StrengthModerate
		if k <= oversold {
			s = domain.StrengthStrong
		}
		out = append(out, signal("bullish_crossover", domain.DirectionBullish, s, "%%K %.1f crossed above %%D", k))
	case pk >= pd && k < d && k > 50:
		s := domain.StrengthModerate
		if k >= overbought {
			s = domain.StrengthStrong
		}
		out = append(out, signal("bearish_crossover", domain.DirectionBearish, s, "%%K %.1f crossed below %%D", k))
	}

	switch {
	case k <= oversold && k > pk:
		out = append(out, signal("bullish_hook", domain.DirectionBullish, domain.StrengthModerate, "%%K turning up from %.1f", pk))
	case k >= overbought && k < pk:
		out = append(out, signal("bearish_hook", domain.DirectionBearish, domain.StrengthModerate, "%%K turning down from %.1f", pk))
	case k <= oversold:
		out = append(out, signal("oversold_zone", domain.DirectionBullish, domain.StrengthWeak, "%%K %.1f oversold", k))
	case k >= overbought:
		out = append(out, signal("overbought_zone", domain.DirectionBearish, domain.StrengthWeak, "%%K %.1f overbought", k))
	}
	return out
}
