package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/indicators"
	"go.uber.org/zap"
)

const (
	// WarmupCandles is how much history is fetched before streaming starts.
	WarmupCandles  = 300
	maxHistory     = 1000
	processTimeout = 10 * time.Second
)

// LiveSignalService scores each closed candle of a live kline stream.
type LiveSignalService struct {
	cfg       config.Config
	market    domain.MarketData
	micro     *MicrostructureService
	generator *SignalGenerator
	repo      domain.ResultRepository
	logger    *zap.Logger

	mu        sync.Mutex
	candles   map[string][]domain.Candle
	prevScore map[string]float64
	observers []func(sig *domain.CompositeSignal)
}

// NewLiveSignalService wires the scorer to a market source. micro and repo are
// optional.
func NewLiveSignalService(cfg config.Config, market domain.MarketData, micro *MicrostructureService, repo domain.ResultRepository, logger *zap.Logger) (*LiveSignalService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gen, err := NewSignalGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &LiveSignalService{
		cfg:       cfg.Clone(),
		market:    market,
		micro:     micro,
		generator: gen,
		repo:      repo,
		logger:    logger,
		candles:   make(map[string][]domain.Candle),
		prevScore: make(map[string]float64),
	}, nil
}

// OnSignal registers a callback run after every scoring pass.
func (s *LiveSignalService) OnSignal(fn func(sig *domain.CompositeSignal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Warmup loads closed history for symbol. The newest REST candle is still
// forming, so it is dropped.
func (s *LiveSignalService) Warmup(ctx context.Context, symbol string) error {
	candles, err := s.market.GetCandles(ctx, symbol, s.cfg.Interval, WarmupCandles+1)
	if err != nil {
		return fmt.Errorf("warmup %s: %w", symbol, err)
	}
	if len(candles) > 0 {
		candles = candles[:len(candles)-1]
	}

	s.mu.Lock()
	s.candles[symbol] = candles
	s.mu.Unlock()

	s.logger.Info("Warmup loaded", zap.String("symbol", symbol), zap.Int("candles", len(candles)))
	return nil
}

// HandleKline is the stream callback. Only confirmed candles are scored.
func (s *LiveSignalService) HandleKline(symbol string, candle domain.Candle, confirmed bool) {
	if !confirmed {
		return
	}
	if !s.appendCandle(symbol, candle) {
		s.logger.Debug("Stale kline ignored", zap.String("symbol", symbol), zap.Int64("time", candle.Time))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()
	if _, err := s.Process(ctx, symbol); err != nil {
		s.logger.Error("Failed to process candle", zap.String("symbol", symbol), zap.Error(err))
	}
}

// appendCandle reports false for a candle older than the newest one held.
// A candle with the same open time replaces the newest.
func (s *LiveSignalService) appendCandle(symbol string, candle domain.Candle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.candles[symbol]
	if n := len(history); n > 0 && history[n-1].Time >= candle.Time {
		if history[n-1].Time == candle.Time {
			history[n-1] = candle
			return true
		}
		return false
	}
	history = append(history, candle)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	s.candles[symbol] = history
	return true
}

// Process scores the latest candle of symbol, persists the signal and
// notifies observers.
func (s *LiveSignalService) Process(ctx context.Context, symbol string) (*domain.CompositeSignal, error) {
	s.mu.Lock()
	history := append([]domain.Candle(nil), s.candles[symbol]...)
	prev, hasPrev := s.prevScore[symbol]
	s.mu.Unlock()

	if len(history) == 0 {
		return nil, fmt.Errorf("no candles for %s", symbol)
	}

	frame := indicators.Latest(history, s.cfg.Indicators)
	var micro *domain.Microstructure
	if s.micro != nil {
		micro = s.micro.Snapshot(ctx, symbol)
	}

	dc := DecisionContext{
		Symbol:     symbol,
		Timestamp:  candleTime(history[len(history)-1]),
		IsChoppy:   frame.IsChoppy,
		ATRPercent: frame.ATRPercent,
		Trend:      frame.Trend,
	}
	if hasPrev {
		dc.PrevScore = &prev
	}
	sig := s.generator.Generate(frame.Results, micro, dc)

	s.mu.Lock()
	s.prevScore[symbol] = sig.CompositeScore
	observers := make([]func(*domain.CompositeSignal), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveSignal(ctx, &sig); err != nil {
			s.logger.Error("Failed to save signal", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	for _, fn := range observers {
		fn(&sig)
	}
	return &sig, nil
}
