package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/logger"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	"github.com/Ritenoob/cypherscoping--sub005/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbol := flag.String("symbol", "", "only analyze this symbol")
	limit := flag.Int("limit", 5000, "number of newest signals to read")
	top := flag.Int("top", 30, "rows to print")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer store.Close()

	results, err := usecase.NewSignalAnalyzerService(store, log).Analyze(ctx, *symbol, *limit)
	if err != nil {
		log.Fatal("Failed to analyze signals", zap.Error(err))
	}

	fmt.Printf("\nSignal history (total analyzed: %d symbols):\n", len(results))
	fmt.Printf("%-14s | %-7s | %-7s | %-12s | %-9s | %-9s | %-10s | %s\n",
		"Symbol", "Signals", "Auth %", "Tier", "Score", "1h chg", "Consistent", "Top block reasons")
	fmt.Println(strings.Repeat("-", 110))

	for i, res := range results {
		if i >= *top {
			break
		}
		consistentMark := ""
		if res.Change1h.IsConsistent {
			consistentMark = "YES"
		}
		fmt.Printf("%-14s | %-7d | %-7.1f | %-12s | %-9.2f | %-9.2f | %-10s | %s\n",
			res.Symbol, res.Signals, res.AuthorizedPct, res.LatestTier, res.LatestScore,
			res.Change1h.Change, consistentMark, topReasons(res.BlockReasons, 3))
	}
}

func topReasons(counts map[string]int, n int) string {
	type kv struct {
		reason string
		count  int
	}
	var list []kv
	for r, c := range counts {
		list = append(list, kv{r, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].reason < list[j].reason
	})

	var parts []string
	for i, e := range list {
		if i >= n {
			break
		}
		parts = append(parts, fmt.Sprintf("%s=%d", e.reason, e.count))
	}
	return strings.Join(parts, ", ")
}
