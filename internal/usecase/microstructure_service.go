package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"go.uber.org/zap"
)

const (
	// MaxBuySellRatio caps the ratio when the window has buys but no sells.
	MaxBuySellRatio = 10.0

	flowWindow   = 60 * time.Second
	depthRange   = 0.005 // +/- 0.5% around mid
	depthRefresh = 5 * time.Second
)

type flowTrade struct {
	Side     string
	Notional float64
	Time     time.Time
}

type depthSnapshot struct {
	Time     time.Time
	TotalBid float64
	TotalAsk float64
}

// MicrostructureService turns the public trade tape and order book into
// buy/sell ratio and depth imbalance readings over a rolling window.
type MicrostructureService struct {
	market       domain.MarketData
	logger       *zap.Logger
	trades       map[string][]flowTrade
	depthHistory map[string][]depthSnapshot
	mu           sync.Mutex
	timeNow      func() time.Time
}

// NewMicrostructureService takes an optional REST source used to hydrate
// an empty window. Pass nil to rely on stream updates alone.
func NewMicrostructureService(market domain.MarketData, logger *zap.Logger) *MicrostructureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MicrostructureService{
		market:       market,
		logger:       logger,
		trades:       make(map[string][]flowTrade),
		depthHistory: make(map[string][]depthSnapshot),
		timeNow:      time.Now,
	}
}

// Attach registers the service on a live stream.
func (s *MicrostructureService) Attach(stream domain.Stream) {
	stream.OnTradeUpdate(s.HandleTrade)
	stream.OnOrderBook(s.HandleOrderBook)
}

func (s *MicrostructureService) HandleTrade(symbol, side string, size, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.timeNow()
	s.trades[symbol] = append(s.trades[symbol], flowTrade{Side: side, Notional: size * price, Time: now})
	s.pruneTrades(symbol, now)
}

// HandleOrderBook records the depth within range of mid price.
func (s *MicrostructureService) HandleOrderBook(book *domain.OrderBook) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return
	}
	totalBid, totalAsk := depthNearMid(book)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.timeNow()
	s.depthHistory[book.Symbol] = append(s.depthHistory[book.Symbol], depthSnapshot{
		Time:     now,
		TotalBid: totalBid,
		TotalAsk: totalAsk,
	})
	s.pruneDepth(book.Symbol, now)
}

// Snapshot returns the current readings for symbol. When the window is empty
// and a REST source is configured it is hydrated first.
func (s *MicrostructureService) Snapshot(ctx context.Context, symbol string) *domain.Microstructure {
	s.hydrate(ctx, symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.timeNow()
	s.pruneTrades(symbol, now)
	s.pruneDepth(symbol, now)

	out := &domain.Microstructure{}

	var buyVol, sellVol float64
	var lastTrade time.Time
	for _, t := range s.trades[symbol] {
		if strings.EqualFold(t.Side, "Buy") {
			buyVol += t.Notional
		} else {
			sellVol += t.Notional
		}
		if t.Time.After(lastTrade) {
			lastTrade = t.Time
		}
	}
	if buyVol+sellVol > 0 {
		ratio := MaxBuySellRatio
		if sellVol > 0 {
			ratio = min(buyVol/sellVol, MaxBuySellRatio)
		}
		out.BuySellRatio = &domain.RatioReading{Ratio: ratio, Live: true, At: lastTrade}
	}

	if history := s.depthHistory[symbol]; len(history) > 0 {
		var sumBid, sumAsk float64
		for _, snap := range history {
			sumBid += snap.TotalBid
			sumAsk += snap.TotalAsk
		}
		if sumBid+sumAsk > 0 {
			out.DOMImbalance = &domain.ImbalanceReading{
				Value: (sumBid - sumAsk) / (sumBid + sumAsk),
				Live:  true,
				At:    history[len(history)-1].Time,
			}
		}
	}
	return out
}

func (s *MicrostructureService) hydrate(ctx context.Context, symbol string) {
	if s.market == nil {
		return
	}

	s.mu.Lock()
	now := s.timeNow()
	s.pruneTrades(symbol, now)
	needTrades := len(s.trades[symbol]) == 0
	needDepth := true
	if h := s.depthHistory[symbol]; len(h) > 0 && now.Sub(h[len(h)-1].Time) < depthRefresh {
		needDepth = false
	}
	s.mu.Unlock()

	if needTrades {
		recent, err := s.market.GetRecentTrades(ctx, symbol, 1000)
		if err != nil {
			s.logger.Warn("Failed to hydrate recent trades", zap.String("symbol", symbol), zap.Error(err))
		} else {
			s.mu.Lock()
			// a stream update may have landed while we were fetching
			if len(s.trades[symbol]) == 0 {
				for _, t := range recent {
					s.trades[symbol] = append(s.trades[symbol], flowTrade{
						Side:     t.Side,
						Notional: t.Size * t.Price,
						Time:     time.UnixMilli(t.Time),
					})
				}
				s.pruneTrades(symbol, s.timeNow())
			}
			s.mu.Unlock()
		}
	}

	if needDepth {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		book, err := s.market.GetOrderBook(ctx, symbol, 50)
		if err != nil {
			s.logger.Warn("Failed to refresh order book", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		if book != nil && book.Symbol == "" {
			book.Symbol = symbol
		}
		s.HandleOrderBook(book)
	}
}

func (s *MicrostructureService) pruneTrades(symbol string, now time.Time) {
	cutoff := now.Add(-flowWindow)
	valid := s.trades[symbol][:0]
	for _, t := range s.trades[symbol] {
		if t.Time.After(cutoff) {
			valid = append(valid, t)
		}
	}
	s.trades[symbol] = valid
}

func (s *MicrostructureService) pruneDepth(symbol string, now time.Time) {
	cutoff := now.Add(-flowWindow)
	valid := s.depthHistory[symbol][:0]
	for _, snap := range s.depthHistory[symbol] {
		if snap.Time.After(cutoff) {
			valid = append(valid, snap)
		}
	}
	s.depthHistory[symbol] = valid
}

func depthNearMid(book *domain.OrderBook) (totalBid, totalAsk float64) {
	mid := (book.Bids[0].Price + book.Asks[0].Price) / 2
	minBid := mid * (1 - depthRange)
	maxAsk := mid * (1 + depthRange)
	for _, e := range book.Bids {
		if e.Price >= minBid {
			totalBid += e.Size
		}
	}
	for _, e := range book.Asks {
		if e.Price <= maxAsk {
			totalAsk += e.Size
		}
	}
	return totalBid, totalAsk
}
