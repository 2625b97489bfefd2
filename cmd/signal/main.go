package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/exchange"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/logger"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	"github.com/Ritenoob/cypherscoping--sub005/internal/metrics"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"github.com/Ritenoob/cypherscoping--sub005/internal/web"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma separated symbols, defaults to config symbol")
	strict := flag.Bool("strict", false, "use strict gate thresholds")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *strict {
		cfg.Gate.StrictMode = true
	}
	symbols := []string{cfg.Symbol}
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}

	// 2. Init Logger
	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Init Storage
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange and Services
	bybitAdapter := exchange.NewBybitAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)
	micro := usecase.NewMicrostructureService(bybitAdapter, log)
	micro.Attach(bybitAdapter)

	svc, err := usecase.NewLiveSignalService(cfg, bybitAdapter, micro, store, log)
	if err != nil {
		log.Fatal("Invalid signal config", zap.Error(err))
	}
	svc.OnSignal(metrics.ObserveSignal)
	svc.OnSignal(func(sig *domain.CompositeSignal) {
		log.Info("Signal",
			zap.String("symbol", sig.Symbol),
			zap.Float64("score", sig.CompositeScore),
			zap.String("tier", string(sig.SignalStrength)),
			zap.Bool("authorized", sig.Authorized),
			zap.Strings("blocked_by", sig.BlockReasons),
		)
	})

	for _, s := range symbols {
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		err := svc.Warmup(warmCtx, s)
		warmCancel()
		if err != nil {
			log.Fatal("Failed to load history", zap.String("symbol", s), zap.Error(err))
		}
	}

	// 5. Stream
	bybitAdapter.OnKline(svc.HandleKline)
	if err := bybitAdapter.Subscribe(symbols, cfg.Interval); err != nil {
		log.Fatal("Failed to subscribe", zap.Error(err))
	}
	defer bybitAdapter.Close()

	// 6. Init Web Server
	server := web.NewServer(cfg.Server.Port, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 7. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
