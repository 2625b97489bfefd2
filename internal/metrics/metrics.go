package metrics

import (
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Composite signals generated, by tier"},
		[]string{"symbol", "tier"},
	)
	SignalsAuthorized = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_authorized_total", Help: "Signals that passed the entry gate"},
		[]string{"symbol", "side"},
	)
	GateBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gate_blocks_total", Help: "Entry gate rejections, by reason"},
		[]string{"reason"},
	)
	CompositeScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "composite_score", Help: "Latest composite score"},
		[]string{"symbol"},
	)
	BacktestTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_trades_total", Help: "Simulated trades closed, by exit reason"},
		[]string{"reason"},
	)
	BacktestFinalBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "backtest_final_balance", Help: "Final balance of the last backtest run"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, SignalsAuthorized, GateBlocks, CompositeScore, BacktestTrades, BacktestFinalBalance)
}

// ObserveSignal records one scoring pass.
func ObserveSignal(sig *domain.CompositeSignal) {
	SignalsTotal.WithLabelValues(sig.Symbol, string(sig.SignalStrength)).Inc()
	CompositeScore.WithLabelValues(sig.Symbol).Set(sig.CompositeScore)
	if sig.Authorized {
		SignalsAuthorized.WithLabelValues(sig.Symbol, string(sig.Side)).Inc()
	}
	for _, r := range sig.BlockReasons {
		GateBlocks.WithLabelValues(r).Inc()
	}
}

// ObserveRun records a finished backtest.
func ObserveRun(symbol string, trades []domain.TradeRecord, finalBalance decimal.Decimal) {
	for _, t := range trades {
		BacktestTrades.WithLabelValues(string(t.Reason)).Inc()
	}
	BacktestFinalBalance.WithLabelValues(symbol).Set(finalBalance.InexactFloat64())
}
