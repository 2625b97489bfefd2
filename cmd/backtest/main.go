package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/indicators"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/exchange"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/logger"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	"github.com/Ritenoob/cypherscoping--sub005/internal/metrics"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	csvPath := flag.String("csv", "", "read candles from CSV instead of the exchange")
	symbol := flag.String("symbol", "", "override config symbol")
	interval := flag.String("interval", "", "override config interval")
	limit := flag.Int("candles", 0, "override backtest.candle_limit")
	strict := flag.Bool("strict", false, "use strict gate thresholds")
	noSave := flag.Bool("no-save", false, "do not persist the run")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *interval != "" {
		cfg.Interval = *interval
	}
	if *limit > 0 {
		cfg.Backtest.CandleLimit = *limit
	}
	if *strict {
		cfg.Gate.StrictMode = true
	}

	// 2. Init Logger
	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// 3. Load Candles
	var candles []domain.Candle
	if *csvPath != "" {
		candles, err = loadCandlesCSV(*csvPath)
	} else {
		adapter := exchange.NewBybitAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)
		candles, err = adapter.GetCandleHistory(ctx, cfg.Symbol, cfg.Interval, cfg.Backtest.CandleLimit)
	}
	if err != nil {
		log.Fatal("Failed to load candles", zap.Error(err))
	}
	log.Info("Candles loaded", zap.String("symbol", cfg.Symbol), zap.String("interval", cfg.Interval), zap.Int("count", len(candles)))

	// 4. Replay
	started := time.Now().UTC()
	series := indicators.BuildSeries(candles, cfg.Indicators)
	bt, err := usecase.NewBacktester(cfg, log)
	if err != nil {
		log.Fatal("Invalid backtest config", zap.Error(err))
	}
	res, err := bt.Run(candles, series)
	if err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}
	metrics.ObserveRun(cfg.Symbol, res.Trades, res.FinalBalance)

	log.Info("Backtest finished",
		zap.String("final_balance", res.FinalBalance.StringFixed(2)),
		zap.Float64("total_return_pct", res.TotalReturn),
		zap.Int("trades", res.TotalTrades),
		zap.Float64("win_rate_pct", res.WinRate),
		zap.Float64("profit_factor", res.ProfitFactor),
		zap.Float64("sharpe", res.SharpeRatio),
		zap.Float64("max_drawdown_pct", res.MaxDrawdown),
		zap.Int("signals_authorized", res.SignalsAuthorized),
		zap.Any("gate_blocks", res.GateBlocks),
	)

	if *noSave {
		return
	}

	// 5. Persist
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	run := &domain.BacktestRun{
		Symbol:       cfg.Symbol,
		Interval:     cfg.Interval,
		StartedAt:    started,
		Candles:      len(candles),
		FinalBalance: res.FinalBalance,
		TotalReturn:  res.TotalReturn,
		TotalTrades:  res.TotalTrades,
		WinRate:      res.WinRate,
		ProfitFactor: res.ProfitFactor,
		SharpeRatio:  res.SharpeRatio,
		MaxDrawdown:  res.MaxDrawdown,
		Trades:       res.Trades,
		Equity:       res.Equity,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		log.Error("Failed to save run", zap.Error(err))
		return
	}
	log.Info("Run saved", zap.String("id", run.ID), zap.String("driver", cfg.Storage.Driver))
}
