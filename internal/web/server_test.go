package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	_ "github.com/Ritenoob/cypherscoping--sub005/internal/metrics"
	"github.com/Ritenoob/cypherscoping--sub005/internal/web"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*storage.SQLiteStore, http.Handler) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, web.NewServer(0, store, zap.NewNop()).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLatestSignal(t *testing.T) {
	store, h := setup(t)

	rec := get(t, h, "/api/signal/latest?symbol=BTCUSDT")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []float64{40, 95} {
		require.NoError(t, store.SaveSignal(context.Background(), &domain.CompositeSignal{
			Symbol:         "BTCUSDT",
			CompositeScore: score,
			SignalStrength: domain.TierBuy,
			Timestamp:      at.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec = get(t, h, "/api/signal/latest?symbol=BTCUSDT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var sig domain.CompositeSignal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sig))
	assert.Equal(t, 95.0, sig.CompositeScore)

	rec = get(t, h, "/api/signals?limit=10")
	var list []domain.CompositeSignal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestRuns(t *testing.T) {
	store, h := setup(t)

	rec := get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	run := &domain.BacktestRun{
		ID:           "run-1",
		Symbol:       "BTCUSDT",
		Interval:     "15",
		StartedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		FinalBalance: decimal.RequireFromString("1000.4"),
		TotalTrades:  1,
		Trades: []domain.TradeRecord{{
			Symbol:     "BTCUSDT",
			Side:       domain.SideShort,
			EntryPrice: decimal.NewFromInt(100),
			ExitPrice:  decimal.NewFromInt(98),
			Reason:     domain.CloseTakeProfit,
		}},
		Equity: []domain.EquityPoint{{Value: decimal.NewFromInt(1000)}},
	}
	require.NoError(t, store.SaveRun(context.Background(), run))

	rec = get(t, h, "/api/runs?limit=5")
	var runs []domain.BacktestRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)

	rec = get(t, h, "/api/runs/run-1/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []domain.TradeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, domain.SideShort, trades[0].Side)

	rec = get(t, h, "/api/runs/run-1/equity")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/api/runs/missing/trades")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBadLimit(t *testing.T) {
	_, h := setup(t)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/runs?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/signals?limit=0").Code)
}

func TestMetricsAndStatus(t *testing.T) {
	_, h := setup(t)

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = get(t, h, "/status")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
