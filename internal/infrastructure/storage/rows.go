package storage

import (
	"encoding/json"
	"fmt"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
)

// scanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	err := row.Scan(&r.ID, &r.Symbol, &r.Interval, &r.StartedAt, &r.Candles, &r.FinalBalance,
		&r.TotalReturn, &r.TotalTrades, &r.WinRate, &r.ProfitFactor, &r.SharpeRatio, &r.MaxDrawdown)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const tradeColumns = `symbol, side, entry_price, exit_price, size, leverage, margin, stop_loss, take_profit, entry_time, exit_time, reason, fees, pnl, roi, highest_roi`

func scanTrade(row scanner) (domain.TradeRecord, error) {
	var t domain.TradeRecord
	var side, reason string
	err := row.Scan(&t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Size, &t.Leverage, &t.Margin,
		&t.StopLoss, &t.TakeProfit, &t.EntryTime, &t.ExitTime, &reason, &t.Fees, &t.PnL, &t.ROI, &t.HighestROI)
	t.Side = domain.Side(side)
	t.Reason = domain.CloseReason(reason)
	return t, err
}

const signalColumns = `symbol, ts, composite_score, indicator_score, microstructure_score, authorized, side, confidence, tier, signal_type, threshold_used, gate_applied, bullish_count, bearish_count, active_indicators, confirmations, indicator_scores, block_reasons`

func scanSignal(row scanner) (*domain.CompositeSignal, error) {
	var sig domain.CompositeSignal
	var side, tier, scores, reasons string
	err := row.Scan(&sig.Symbol, &sig.Timestamp, &sig.CompositeScore, &sig.IndicatorScore, &sig.MicrostructureScore,
		&sig.Authorized, &side, &sig.Confidence, &tier, &sig.SignalType, &sig.ThresholdUsed, &sig.GateApplied,
		&sig.BullishCount, &sig.BearishCount, &sig.ActiveIndicators, &sig.Confirmations, &scores, &reasons)
	if err != nil {
		return nil, err
	}
	sig.Side = domain.Side(side)
	sig.SignalStrength = domain.Tier(tier)
	if err := json.Unmarshal([]byte(scores), &sig.IndicatorScores); err != nil {
		return nil, fmt.Errorf("decode indicator scores: %w", err)
	}
	if err := json.Unmarshal([]byte(reasons), &sig.BlockReasons); err != nil {
		return nil, fmt.Errorf("decode block reasons: %w", err)
	}
	return &sig, nil
}

func encodeSignalDetails(sig *domain.CompositeSignal) (scores, reasons string, err error) {
	s := sig.IndicatorScores
	if s == nil {
		s = map[domain.IndicatorKind]float64{}
	}
	r := sig.BlockReasons
	if r == nil {
		r = []string{}
	}
	sb, err := json.Marshal(s)
	if err != nil {
		return "", "", err
	}
	rb, err := json.Marshal(r)
	if err != nil {
		return "", "", err
	}
	return string(sb), string(rb), nil
}
