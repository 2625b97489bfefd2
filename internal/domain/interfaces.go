package domain

import "context"

// MarketData is the read-only slice of an exchange the signal tooling needs.
type MarketData interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	GetRecentTrades(ctx context.Context, symbol string, limit int) ([]PublicTrade, error)
}

// Stream pushes live market events to registered callbacks.
type Stream interface {
	OnKline(callback func(symbol string, candle Candle, confirmed bool))
	OnTradeUpdate(callback func(symbol string, side string, size float64, price float64))
	OnOrderBook(callback func(book *OrderBook))
	Subscribe(symbols []string, interval string) error
	Close() error
}

type Candle struct {
	Time   int64   `json:"time"` // unix milliseconds, candle open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type OrderBookEntry struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type OrderBook struct {
	Symbol string           `json:"symbol"`
	Bids   []OrderBookEntry `json:"bids"`
	Asks   []OrderBookEntry `json:"asks"`
	Time   int64            `json:"time"`
}

type PublicTrade struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Size   float64 `json:"size"`
	Price  float64 `json:"price"`
	Time   int64   `json:"time"`
}

// ResultRepository stores what the core produces. The core itself never calls it.
type ResultRepository interface {
	SaveRun(ctx context.Context, run *BacktestRun) error
	GetRun(ctx context.Context, id string) (*BacktestRun, error)
	ListRuns(ctx context.Context, limit int) ([]*BacktestRun, error)
	ListTrades(ctx context.Context, runID string) ([]TradeRecord, error)
	ListEquity(ctx context.Context, runID string) ([]EquityPoint, error)

	SaveSignal(ctx context.Context, sig *CompositeSignal) error
	ListSignals(ctx context.Context, symbol string, limit int) ([]*CompositeSignal, error)
}
