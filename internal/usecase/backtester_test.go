package usecase_test

import (
	"testing"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backtestConfig() config.Config {
	cfg := config.Default()
	cfg.Gate.Enabled = false
	cfg.Risk = tightRisk()
	return cfg
}

func flatCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = candle(int64(i), 100, 100, 100, 100)
	}
	return out
}

func entryFrame() domain.IndicatorFrame {
	return domain.IndicatorFrame{Results: crossoverOnly(), Trend: domain.DirectionBullish}
}

func TestRunBacktest_TakeProfitTrade(t *testing.T) {
	candles := flatCandles(5)
	candles[1] = candle(1, 100, 100.05, 99.995, 100.03)
	series := make([]domain.IndicatorFrame, len(candles))
	series[0] = entryFrame()

	res, err := usecase.RunBacktest(candles, series, backtestConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, domain.CloseTakeProfit, res.Trades[0].Reason)
	assert.Equal(t, domain.SideLong, res.Trades[0].Side)
	assertDec(t, "1000.4", res.FinalBalance, "final balance")
	assert.InDelta(t, 0.04, res.TotalReturn, 1e-9)
	assert.Equal(t, 1, res.TotalTrades)
	assert.Equal(t, 100.0, res.WinRate)
	assert.Equal(t, 0.0, res.ProfitFactor)
	assert.Equal(t, 1, res.SignalsAuthorized)
	assert.Len(t, res.Equity, len(candles))
}

func TestRunBacktest_ForceClosesAtEnd(t *testing.T) {
	candles := flatCandles(4)
	candles[2] = candle(2, 100, 100.01, 99.995, 100.01)
	candles[3] = candle(3, 100.01, 100.02, 100, 100.02)
	series := make([]domain.IndicatorFrame, len(candles))
	series[0] = entryFrame()

	res, err := usecase.RunBacktest(candles, series, backtestConfig())
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, domain.CloseEndOfRun, tr.Reason)
	assertDec(t, "100.02", tr.ExitPrice, "exit")
	assertDec(t, "1000.2", res.FinalBalance, "final balance")

	require.Len(t, res.Equity, len(candles))
	assertDec(t, "1000.2", res.Equity[len(res.Equity)-1].Value, "last equity")
}

func TestRunBacktest_SeriesLengthMismatch(t *testing.T) {
	_, err := usecase.RunBacktest(flatCandles(3), make([]domain.IndicatorFrame, 2), backtestConfig())
	require.ErrorIs(t, err, usecase.ErrSeriesLength)
}

func TestRunBacktest_RejectsInvalidConfig(t *testing.T) {
	cfg := backtestConfig()
	cfg.Risk.Leverage = 0
	_, err := usecase.RunBacktest(flatCandles(3), make([]domain.IndicatorFrame, 3), cfg)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunBacktest_NoSignalsNoTrades(t *testing.T) {
	res, err := usecase.RunBacktest(flatCandles(10), make([]domain.IndicatorFrame, 10), config.Default())
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assertDec(t, "1000", res.FinalBalance, "final balance")
	assert.Equal(t, 0.0, res.SharpeRatio)
	assert.Equal(t, 0.0, res.MaxDrawdown)
	assert.Equal(t, 10, res.GateBlocks[usecase.ReasonDeadZone])
}

func TestRunBacktest_Deterministic(t *testing.T) {
	candles := make([]domain.Candle, 60)
	series := make([]domain.IndicatorFrame, 60)
	price := 100.0
	for i := range candles {
		step := 0.004
		if i%7 < 3 {
			step = -0.003
		}
		next := price + step
		candles[i] = candle(int64(i), price, max(price, next)+0.001, min(price, next)-0.001, next)
		price = next
		if i%10 == 0 {
			series[i] = entryFrame()
		}
	}

	first, err := usecase.RunBacktest(candles, series, backtestConfig())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := usecase.RunBacktest(candles, series, backtestConfig())
		require.NoError(t, err)
		require.Equal(t, first.FinalBalance.String(), again.FinalBalance.String())
		require.Equal(t, len(first.Trades), len(again.Trades))
		require.Equal(t, first.SharpeRatio, again.SharpeRatio)
		require.Equal(t, first.MaxDrawdown, again.MaxDrawdown)
	}
	assert.NotEmpty(t, first.Trades)
}

func TestComputePerformance(t *testing.T) {
	trades := []domain.TradeRecord{
		{PnL: dec("10")},
		{PnL: dec("-5")},
		{PnL: dec("5")},
	}
	equity := []domain.EquityPoint{
		{Value: dec("1000")},
		{Value: dec("1010")},
		{Value: dec("1005")},
		{Value: dec("1010")},
	}

	perf := usecase.ComputePerformance(dec("1000"), trades, equity, 365)
	assert.InDelta(t, 1.0, perf.TotalReturn, 1e-9)
	assert.Equal(t, 3, perf.TotalTrades)
	assert.InDelta(t, 66.6667, perf.WinRate, 1e-3)
	assert.InDelta(t, 3.0, perf.ProfitFactor, 1e-9)
	assert.Greater(t, perf.SharpeRatio, 0.0)

	flat := []domain.EquityPoint{{Value: dec("1000")}, {Value: dec("1000")}, {Value: dec("1000")}}
	assert.Equal(t, 0.0, usecase.ComputePerformance(dec("1000"), nil, flat, 365).SharpeRatio)
}
