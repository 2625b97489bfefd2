package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/indicators"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/exchange"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"go.uber.org/zap"
)

// check_exchange exercises every public endpoint the signal tooling uses and
// prints one scoring pass for the latest closed candle.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbol := flag.String("symbol", "", "override config symbol")
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

	fmt.Printf("Testing Bybit public API...\n")
	fmt.Printf("Endpoint: %s\n", cfg.Exchange.RESTEndpoint)

	adapter := exchange.NewBybitAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. Candles
	candles, err := adapter.GetCandles(ctx, cfg.Symbol, cfg.Interval, usecase.WarmupCandles)
	if err != nil {
		fmt.Printf("❌ Failed to get candles: %v\n", err)
		os.Exit(1)
	}
	if len(candles) < 2 {
		fmt.Printf("❌ Not enough candles: %d\n", len(candles))
		os.Exit(1)
	}
	fmt.Printf("✅ Candles (%s %s): %d, last close %.4f\n", cfg.Symbol, cfg.Interval, len(candles), candles[len(candles)-1].Close)

	// 3. Order Book
	ob, err := adapter.GetOrderBook(ctx, cfg.Symbol, 50)
	if err != nil {
		fmt.Printf("❌ Failed to get order book: %v\n", err)
	} else if len(ob.Bids) > 0 && len(ob.Asks) > 0 {
		fmt.Printf("✅ Order Book: %d bids, %d asks, best %.4f / %.4f\n", len(ob.Bids), len(ob.Asks), ob.Bids[0].Price, ob.Asks[0].Price)
	}

	// 4. Microstructure + Score
	micro := usecase.NewMicrostructureService(adapter, zap.NewNop())
	m := micro.Snapshot(ctx, cfg.Symbol)
	if m != nil && m.BuySellRatio != nil {
		fmt.Printf("✅ Buy/Sell ratio (60s): %.3f\n", m.BuySellRatio.Ratio)
	}
	if m != nil && m.DOMImbalance != nil {
		fmt.Printf("✅ DOM imbalance: %.3f\n", m.DOMImbalance.Value)
	}

	gen, err := usecase.NewSignalGenerator(cfg, zap.NewNop())
	if err != nil {
		fmt.Printf("❌ Invalid config: %v\n", err)
		os.Exit(1)
	}
	closed := candles[:len(candles)-1]
	frame := indicators.Latest(closed, cfg.Indicators)
	sig := gen.Generate(frame.Results, m, usecase.DecisionContext{
		Symbol:     cfg.Symbol,
		Timestamp:  time.UnixMilli(closed[len(closed)-1].Time).UTC(),
		IsChoppy:   frame.IsChoppy,
		ATRPercent: frame.ATRPercent,
		Trend:      frame.Trend,
	})
	fmt.Printf("✅ Score %.2f (%s), confidence %.1f, authorized=%v, blocked by %v\n",
		sig.CompositeScore, sig.SignalStrength, sig.Confidence, sig.Authorized, sig.BlockReasons)
}
