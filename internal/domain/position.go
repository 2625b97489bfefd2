package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideFor maps a score direction to the position side that trades it.
func SideFor(d Direction) Side {
	switch d {
	case DirectionBullish:
		return SideLong
	case DirectionBearish:
		return SideShort
	}
	return ""
}

type CloseReason string

const (
	CloseStopLoss     CloseReason = "stop_loss"
	CloseTakeProfit   CloseReason = "take_profit"
	CloseBreakEven    CloseReason = "break_even"
	CloseTrailingStop CloseReason = "trailing_stop"
	CloseEndOfRun     CloseReason = "end_of_run"
)

// Position is an open simulated position. Stops are only ever tightened.
type Position struct {
	Symbol             string
	Side               Side
	EntryPrice         decimal.Decimal
	Size               decimal.Decimal
	Leverage           int
	StopLoss           decimal.Decimal
	TakeProfit         decimal.Decimal
	EntryTime          time.Time
	Margin             decimal.Decimal
	HighestROI         decimal.Decimal
	BestPrice          decimal.Decimal
	BreakEvenTriggered bool
	TrailingActive     bool
	// stop origin, used to label the exit
	StopSource CloseReason
}

// TradeRecord is a closed position. It is never mutated after creation.
type TradeRecord struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Size       decimal.Decimal `json:"size"`
	Leverage   int             `json:"leverage"`
	Margin     decimal.Decimal `json:"margin"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	Reason     CloseReason     `json:"reason"`
	Fees       decimal.Decimal `json:"fees"`
	PnL        decimal.Decimal `json:"pnl"`
	ROI        decimal.Decimal `json:"roi"`
	HighestROI decimal.Decimal `json:"highest_roi"`
}

type EquityPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}
