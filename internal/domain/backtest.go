package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IndicatorFrame holds every indicator reading for one candle, plus the regime
// features that feed confidence adjustment and gating.
type IndicatorFrame struct {
	Results        map[IndicatorKind]IndicatorResult
	Microstructure *Microstructure
	ATRPercent     float64
	IsChoppy       bool
	Trend          Direction
}

// BacktestRun is a persisted backtest summary with its trade and equity history.
type BacktestRun struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Interval     string          `json:"interval"`
	StartedAt    time.Time       `json:"started_at"`
	Candles      int             `json:"candles"`
	FinalBalance decimal.Decimal `json:"final_balance"`
	TotalReturn  float64         `json:"total_return"`
	TotalTrades  int             `json:"total_trades"`
	WinRate      float64         `json:"win_rate"`
	ProfitFactor float64         `json:"profit_factor"`
	SharpeRatio  float64         `json:"sharpe_ratio"`
	MaxDrawdown  float64         `json:"max_drawdown"`
	Trades       []TradeRecord   `json:"trades,omitempty"`
	Equity       []EquityPoint   `json:"equity,omitempty"`
}
