// Package dmath holds the decimal arithmetic used for prices, fees, ROI and
// position sizing. Floats only appear at the boundary (candles, config).
package dmath

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// D converts a float to a decimal. NaN and infinities become zero.
func D(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// F converts back to float64 for reporting.
func F(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Finite maps NaN and infinities to zero.
func Finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Clamp bounds f to [lo, hi]. Non-finite input returns 0 clamped.
func Clamp(f, lo, hi float64) float64 {
	f = Finite(f)
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// SafeDiv returns a/b, or fallback when b is zero.
func SafeDiv(a, b, fallback decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return fallback
	}
	return a.DivRound(b, 16)
}

// ROI is the leveraged percentage return of moving from entry to price.
// Shorts gain when price falls.
func ROI(long bool, entry, price decimal.Decimal, leverage int) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	move := price.Sub(entry).DivRound(entry, 16)
	if !long {
		move = move.Neg()
	}
	return move.Mul(decimal.NewFromInt(int64(leverage))).Mul(hundred)
}

// PriceAtROI is the price at which a position opened at entry shows the given
// leveraged ROI (percent). A negative roi gives the stop side.
func PriceAtROI(long bool, entry, roi decimal.Decimal, leverage int) decimal.Decimal {
	if leverage <= 0 {
		leverage = 1
	}
	move := roi.DivRound(hundred, 16).DivRound(decimal.NewFromInt(int64(leverage)), 16)
	if !long {
		move = move.Neg()
	}
	return entry.Mul(one.Add(move))
}

// BreakEvenROI is the ROI a position needs before a stop at entry is
// profitable after paying both fees. Fees are fractions (0.0006 = 6 bps).
func BreakEvenROI(entryFee, exitFee decimal.Decimal, leverage int, safetyBuffer decimal.Decimal) decimal.Decimal {
	return entryFee.Add(exitFee).
		Mul(decimal.NewFromInt(int64(leverage))).
		Mul(hundred).
		Add(safetyBuffer)
}

// Slip moves a fill price against the position by pct percent. Closing a long
// sells lower, closing a short buys higher; opening is the mirror.
func Slip(long, closing bool, price, pct decimal.Decimal) decimal.Decimal {
	adj := pct.DivRound(hundred, 16)
	worse := long == closing // long exit or short entry fills lower
	if worse {
		return price.Mul(one.Sub(adj))
	}
	return price.Mul(one.Add(adj))
}

// Fee charged on a notional at rate (fraction).
func Fee(notional, rate decimal.Decimal) decimal.Decimal {
	return notional.Abs().Mul(rate)
}

// GrossPnL of size units moved from entry to exit.
func GrossPnL(long bool, entry, exit, size decimal.Decimal) decimal.Decimal {
	diff := exit.Sub(entry)
	if !long {
		diff = diff.Neg()
	}
	return diff.Mul(size)
}

// Sizing is the result of PositionSize.
type Sizing struct {
	Margin   decimal.Decimal
	Notional decimal.Decimal
	Size     decimal.Decimal
}

// PositionSize commits sizePct percent of balance as margin and levers it up.
func PositionSize(balance, sizePct decimal.Decimal, leverage int, price decimal.Decimal) Sizing {
	margin := balance.Mul(sizePct).DivRound(hundred, 16)
	notional := margin.Mul(decimal.NewFromInt(int64(leverage)))
	return Sizing{
		Margin:   margin,
		Notional: notional,
		Size:     SafeDiv(notional, price, decimal.Zero),
	}
}

// MoreFavorable reports whether candidate is a strictly tighter stop than
// current for the given side.
func MoreFavorable(long bool, candidate, current decimal.Decimal) bool {
	if long {
		return candidate.GreaterThan(current)
	}
	return candidate.LessThan(current)
}
