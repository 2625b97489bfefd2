package indicators

import (
	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

const (
	ATRPeriod          = 14
	ChopPeriod         = 14
	ChoppyThreshold    = 61.8
	defaultRSIPeriod   = 14
	defaultRangePeriod = 14
)

// Supported lists the indicator kinds BuildSeries can produce.
var Supported = []domain.IndicatorKind{
	domain.IndicatorRSI,
	domain.IndicatorMACD,
	domain.IndicatorWilliamsR,
	domain.IndicatorStochastic,
	domain.IndicatorBollinger,
	domain.IndicatorEMATrend,
}

type ohlc struct {
	highs, lows, closes []float64
}

func split(candles []domain.Candle) ohlc {
	o := ohlc{
		highs:  make([]float64, len(candles)),
		lows:   make([]float64, len(candles)),
		closes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		o.highs[i], o.lows[i], o.closes[i] = c.High, c.Low, c.Close
	}
	return o
}

func period(ic config.IndicatorConfig, def int) int {
	if ic.Period > 0 {
		return ic.Period
	}
	return def
}

// BuildSeries returns one frame per candle. Indicators appear in a frame only
// once they are warmed up, so early frames are empty. Only enabled kinds are
// computed; regime fields (ATR%, chop, trend) are always filled.
func BuildSeries(candles []domain.Candle, table config.IndicatorTable) []domain.IndicatorFrame {
	n := len(candles)
	frames := make([]domain.IndicatorFrame, n)
	for i := range frames {
		frames[i].Results = make(map[domain.IndicatorKind]domain.IndicatorResult)
	}
	if n == 0 {
		return frames
	}
	o := split(candles)

	enabled := func(k domain.IndicatorKind) (config.IndicatorConfig, bool) {
		ic, ok := table[k]
		return ic, ok && ic.Enabled && ic.Weight > 0
	}

	if ic, ok := enabled(domain.IndicatorRSI); ok {
		p := period(ic, defaultRSIPeriod)
		rsi := CalculateRSI(o.closes, p)
		oversold, overbought := ic.Setting(domain.IndicatorRSI, "oversold"), ic.Setting(domain.IndicatorRSI, "overbought")
		for i := p + 1; i < n; i++ {
			frames[i].Results[domain.IndicatorRSI] = domain.Enhanced(rsi[i], rsiSignals(rsi, o.closes, i, p, oversold, overbought)...)
		}
	}

	if ic, ok := enabled(domain.IndicatorWilliamsR); ok {
		p := period(ic, defaultRangePeriod)
		wr := CalculateWilliamsR(o.highs, o.lows, o.closes, p)
		oversold, overbought := ic.Setting(domain.IndicatorWilliamsR, "oversold"), ic.Setting(domain.IndicatorWilliamsR, "overbought")
		for i := p; i < n; i++ {
			frames[i].Results[domain.IndicatorWilliamsR] = domain.Enhanced(wr[i], williamsSignals(wr, i, oversold, overbought)...)
		}
	}

	if ic, ok := enabled(domain.IndicatorMACD); ok {
		fast := int(ic.Setting(domain.IndicatorMACD, "fast"))
		slow := int(ic.Setting(domain.IndicatorMACD, "slow"))
		sig := int(ic.Setting(domain.IndicatorMACD, "signal"))
		m := CalculateMACD(o.closes, fast, slow, sig)
		for i := max(slow+sig-1, 1); i < n; i++ {
			frames[i].Results[domain.IndicatorMACD] = domain.Enhanced(m.Histogram[i], macdSignals(m, i)...)
		}
	}

	if ic, ok := enabled(domain.IndicatorStochastic); ok {
		p := period(ic, defaultRangePeriod)
		smooth := int(ic.Setting(domain.IndicatorStochastic, "smooth"))
		if smooth < 1 {
			smooth = 1
		}
		st := CalculateStochastic(o.highs, o.lows, o.closes, p, smooth)
		oversold, overbought := ic.Setting(domain.IndicatorStochastic, "oversold"), ic.Setting(domain.IndicatorStochastic, "overbought")
		for i := p + smooth - 1; i < n; i++ {
			frames[i].Results[domain.IndicatorStochastic] = domain.Enhanced(st.K[i], stochasticSignals(st, i, oversold, overbought)...)
		}
	}

	if ic, ok := enabled(domain.IndicatorBollinger); ok {
		p := period(ic, 20)
		bb := CalculateBollingerBands(o.closes, p, ic.Setting(domain.IndicatorBollinger, "stddev"))
		for i := p; i < n; i++ {
			pctB, sigs := bollingerSignals(bb, o.closes, i)
			frames[i].Results[domain.IndicatorBollinger] = domain.Enhanced(pctB, sigs...)
		}
	}

	trendCfg := table[domain.IndicatorEMATrend]
	fastP := int(trendCfg.Setting(domain.IndicatorEMATrend, "fast"))
	slowP := int(trendCfg.Setting(domain.IndicatorEMATrend, "slow"))
	fastEMA := CalculateEMA(o.closes, fastP)
	slowEMA := CalculateEMA(o.closes, slowP)
	warm := max(fastP, slowP)
	for i := warm - 1; i < n && warm > 0; i++ {
		switch {
		case fastEMA[i] > slowEMA[i]:
			frames[i].Trend = domain.DirectionBullish
		case fastEMA[i] < slowEMA[i]:
			frames[i].Trend = domain.DirectionBearish
		}
	}
	if _, ok := enabled(domain.IndicatorEMATrend); ok {
		for i := warm; i < n && warm > 0; i++ {
			spread := 0.0
			if slowEMA[i] != 0 {
				spread = (fastEMA[i] - slowEMA[i]) / slowEMA[i] * 100
			}
			frames[i].Results[domain.IndicatorEMATrend] = domain.Enhanced(spread, emaTrendSignals(fastEMA, slowEMA, i)...)
		}
	}

	atr := CalculateATR(o.highs, o.lows, o.closes, ATRPeriod)
	for i := ATRPeriod - 1; i < n; i++ {
		if o.closes[i] > 0 {
			frames[i].ATRPercent = atr[i] / o.closes[i] * 100
		}
	}
	chop := CalculateChoppiness(o.highs, o.lows, o.closes, ChopPeriod)
	for i := ChopPeriod; i < n; i++ {
		frames[i].IsChoppy = chop[i] > ChoppyThreshold
	}
	return frames
}

// Latest builds the series and returns the frame for the last candle.
func Latest(candles []domain.Candle, table config.IndicatorTable) domain.IndicatorFrame {
	frames := BuildSeries(candles, table)
	if len(frames) == 0 {
		return domain.IndicatorFrame{Results: map[domain.IndicatorKind]domain.IndicatorResult{}}
	}
	return frames[len(frames)-1]
}
