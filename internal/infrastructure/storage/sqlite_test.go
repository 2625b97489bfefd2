package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(started time.Time) *domain.BacktestRun {
	d := decimal.RequireFromString
	return &domain.BacktestRun{
		Symbol:       "BTCUSDT",
		Interval:     "15",
		StartedAt:    started,
		Candles:      500,
		FinalBalance: d("1000.40000001"),
		TotalReturn:  0.04,
		TotalTrades:  1,
		WinRate:      100,
		SharpeRatio:  1.5,
		MaxDrawdown:  0.2,
		Trades: []domain.TradeRecord{{
			Symbol:     "BTCUSDT",
			Side:       domain.SideLong,
			EntryPrice: d("100"),
			ExitPrice:  d("102"),
			Size:       d("1"),
			Leverage:   10,
			Margin:     d("10"),
			StopLoss:   d("99.5"),
			TakeProfit: d("102"),
			EntryTime:  started,
			ExitTime:   started.Add(time.Hour),
			Reason:     domain.CloseTakeProfit,
			Fees:       d("0"),
			PnL:        d("0.4"),
			ROI:        d("20"),
			HighestROI: d("20"),
		}},
		Equity: []domain.EquityPoint{
			{Timestamp: started, Value: d("1000")},
			{Timestamp: started.Add(time.Hour), Value: d("1000.40000001")},
		},
	}
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	run := sampleRun(started)
	require.NoError(t, store.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID, "id assigned on save")

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, 500, got.Candles)
	assert.True(t, got.FinalBalance.Equal(run.FinalBalance), "decimal round-trips exactly: %s", got.FinalBalance)
	assert.True(t, got.StartedAt.Equal(started))

	require.Len(t, got.Trades, 1)
	tr := got.Trades[0]
	assert.Equal(t, domain.SideLong, tr.Side)
	assert.Equal(t, domain.CloseTakeProfit, tr.Reason)
	assert.True(t, tr.PnL.Equal(decimal.RequireFromString("0.4")))
	assert.True(t, tr.ExitTime.Equal(started.Add(time.Hour)))

	require.Len(t, got.Equity, 2)
	assert.True(t, got.Equity[1].Value.Equal(run.FinalBalance))
}

func TestSQLiteStore_GetRunNotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	older := sampleRun(base)
	older.ID = "older"
	newer := sampleRun(base.Add(24 * time.Hour))
	newer.ID = "newer"
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].ID)
	assert.Empty(t, runs[0].Trades, "listing does not load trades")

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteStore_DuplicateRunRollsBack(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	run := sampleRun(time.Now().UTC())
	run.ID = "dup"
	require.NoError(t, store.SaveRun(ctx, run))
	require.Error(t, store.SaveRun(ctx, run))

	trades, err := store.ListTrades(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, trades, 1, "failed save left no extra rows")
}

func TestSQLiteStore_Signals(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	blocked := &domain.CompositeSignal{
		Symbol:          "ETHUSDT",
		CompositeScore:  42.5,
		IndicatorScore:  40,
		SignalStrength:  domain.TierWeakBuy,
		IndicatorScores: map[domain.IndicatorKind]float64{domain.IndicatorRSI: 40},
		BlockReasons:    []string{"min_score", "min_indicators"},
		GateApplied:     true,
		ThresholdUsed:   80,
		Timestamp:       at,
	}
	authorized := &domain.CompositeSignal{
		Symbol:         "BTCUSDT",
		CompositeScore: 120.96,
		Authorized:     true,
		Side:           domain.SideLong,
		Confidence:     75,
		SignalStrength: domain.TierStrongBuy,
		Timestamp:      at.Add(time.Minute),
	}
	require.NoError(t, store.SaveSignal(ctx, blocked))
	require.NoError(t, store.SaveSignal(ctx, authorized))

	all, err := store.ListSignals(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "BTCUSDT", all[0].Symbol, "newest first")
	assert.True(t, all[0].Authorized)
	assert.Equal(t, domain.SideLong, all[0].Side)
	assert.Empty(t, all[0].BlockReasons)

	eth, err := store.ListSignals(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	require.Len(t, eth, 1)
	assert.Equal(t, []string{"min_score", "min_indicators"}, eth[0].BlockReasons)
	assert.Equal(t, 40.0, eth[0].IndicatorScores[domain.IndicatorRSI])
	assert.Equal(t, domain.TierWeakBuy, eth[0].SignalStrength)
	assert.True(t, eth[0].Timestamp.Equal(at))
}
