// Package indicators computes indicator series from candles and turns each
// candle's readings into the structured signals the scorer consumes.
//
// Every Calculate function returns a slice aligned with its input. Entries
// before the warm-up index are zero.
package indicators

import "math"

// CalculateEMA computes the Exponential Moving Average, seeded with an SMA.
func CalculateEMA(data []float64, period int) []float64 {
	ema := make([]float64, len(data))
	if period <= 0 || len(data) < period {
		return ema
	}

	k := 2.0 / (float64(period) + 1.0)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	ema[period-1] = sum / float64(period)

	for i := period; i < len(data); i++ {
		ema[i] = data[i]*k + ema[i-1]*(1-k)
	}
	return ema
}

// CalculateRSI computes the Relative Strength Index with Wilder smoothing.
// The first value is at index period.
func CalculateRSI(closes []float64, period int) []float64 {
	rsi := make([]float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return rsi
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	rsi[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		rsi[i] = rsiValue(avgGain, avgLoss)
	}
	return rsi
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// CalculateWilliamsR computes Williams %R in [-100, 0]. A flat window reads -50.
// The first value is at index period-1.
func CalculateWilliamsR(highs, lows, closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) < period {
		return out
	}
	for i := period - 1; i < len(closes); i++ {
		hh, ll := windowRange(highs, lows, i-period+1, i)
		if hh == ll {
			out[i] = -50
			continue
		}
		out[i] = (hh - closes[i]) / (hh - ll) * -100
	}
	return out
}

// Stochastic holds %K and its %D smoothing.
type Stochastic struct {
	K []float64
	D []float64
}

// CalculateStochastic computes %K over period and %D as an SMA of %K. A flat
// window reads 50. %K starts at period-1, %D at period+smooth-2.
func CalculateStochastic(highs, lows, closes []float64, period, smooth int) Stochastic {
	k := make([]float64, len(closes))
	d := make([]float64, len(closes))
	if period <= 0 || len(closes) < period {
		return Stochastic{K: k, D: d}
	}
	if smooth <= 0 {
		smooth = 1
	}
	for i := period - 1; i < len(closes); i++ {
		hh, ll := windowRange(highs, lows, i-period+1, i)
		if hh == ll {
			k[i] = 50
			continue
		}
		k[i] = (closes[i] - ll) / (hh - ll) * 100
	}
	for i := period + smooth - 2; i < len(closes); i++ {
		sum := 0.0
		for j := 0; j < smooth; j++ {
			sum += k[i-j]
		}
		d[i] = sum / float64(smooth)
	}
	return Stochastic{K: k, D: d}
}

// MACD holds the MACD line, its signal line and the histogram.
type MACD struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD computes MACD(fast, slow, signal). The line starts at
// slow-1 and the signal and histogram at slow+signal-2.
func CalculateMACD(closes []float64, fast, slow, signal int) MACD {
	n := len(closes)
	line := make([]float64, n)
	sig := make([]float64, n)
	hist := make([]float64, n)
	out := MACD{Line: line, Signal: sig, Histogram: hist}
	if fast <= 0 || slow <= fast || signal <= 0 || n < slow {
		return out
	}

	fastEMA := CalculateEMA(closes, fast)
	slowEMA := CalculateEMA(closes, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signalEMA := CalculateEMA(line[slow-1:], signal)
	for i, v := range signalEMA {
		idx := i + slow - 1
		if i < signal-1 {
			continue
		}
		sig[idx] = v
		hist[idx] = line[idx] - v
	}
	return out
}

type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateBollingerBands computes SMA bands at multiplier population
// standard deviations.
func CalculateBollingerBands(closes []float64, period int, multiplier float64) BollingerBands {
	length := len(closes)
	upper := make([]float64, length)
	middle := make([]float64, length)
	lower := make([]float64, length)

	if period <= 0 || length < period {
		return BollingerBands{upper, middle, lower}
	}

	for i := period - 1; i < length; i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += closes[i-j]
		}
		ma := sum / float64(period)
		middle[i] = ma

		sumSqDiff := 0.0
		for j := 0; j < period; j++ {
			diff := closes[i-j] - ma
			sumSqDiff += diff * diff
		}
		stdDev := math.Sqrt(sumSqDiff / float64(period))

		upper[i] = ma + multiplier*stdDev
		lower[i] = ma - multiplier*stdDev
	}
	return BollingerBands{Upper: upper, Middle: middle, Lower: lower}
}

// TrueRange for every candle. The first candle uses high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	trs := make([]float64, len(closes))
	if len(closes) == 0 {
		return trs
	}
	trs[0] = highs[0] - lows[0]
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}
	return trs
}

// CalculateATR computes the Average True Range with Wilder smoothing. The
// first value is at index period-1.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	length := len(closes)
	atr := make([]float64, length)
	if period <= 0 || length < period+1 {
		return atr
	}

	trs := TrueRange(highs, lows, closes)
	sumTR := 0.0
	for i := 0; i < period; i++ {
		sumTR += trs[i]
	}
	atr[period-1] = sumTR / float64(period)

	for i := period; i < length; i++ {
		atr[i] = (atr[i-1]*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}

// CalculateChoppiness computes the Choppiness Index in [0, 100]. High values
// mean sideways action. A flat window reads 100. The first value is at index
// period.
func CalculateChoppiness(highs, lows, closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 1 || len(closes) < period+1 {
		return out
	}
	trs := TrueRange(highs, lows, closes)
	norm := math.Log10(float64(period))
	for i := period; i < len(closes); i++ {
		sumTR := 0.0
		for j := i - period + 1; j <= i; j++ {
			sumTR += trs[j]
		}
		hh, ll := windowRange(highs, lows, i-period+1, i)
		if hh == ll || sumTR == 0 {
			out[i] = 100
			continue
		}
		v := 100 * math.Log10(sumTR/(hh-ll)) / norm
		out[i] = math.Max(0, math.Min(100, v))
	}
	return out
}

func windowRange(highs, lows []float64, from, to int) (hh, ll float64) {
	hh, ll = highs[from], lows[from]
	for j := from + 1; j <= to; j++ {
		if highs[j] > hh {
			hh = highs[j]
		}
		if lows[j] < ll {
			ll = lows[j]
		}
	}
	return hh, ll
}
