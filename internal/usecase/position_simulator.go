package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/pkg/dmath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrPositionOpen        = errors.New("position already open")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidSide         = errors.New("invalid side")
)

type riskParams struct {
	sizePct        decimal.Decimal
	leverage       int
	stopLossROI    decimal.Decimal
	takeProfitROI  decimal.Decimal
	beEnabled      bool
	beActivation   decimal.Decimal
	beBuffer       decimal.Decimal
	trailEnabled   bool
	trailActivate  decimal.Decimal
	trailDistance  decimal.Decimal
	trailStep      decimal.Decimal
	entryFee       decimal.Decimal
	exitFee        decimal.Decimal
	slippagePct    decimal.Decimal
	initialBalance decimal.Decimal
}

// PositionSimulator replays one leveraged position at a time against
// candles. Stops only ever tighten; stop-loss wins when a candle touches
// both stop and take-profit.
type PositionSimulator struct {
	symbol string
	risk   riskParams
	logger *zap.Logger

	balance  decimal.Decimal
	position *domain.Position
	trades   []domain.TradeRecord
	equity   []domain.EquityPoint

	peak        decimal.Decimal
	drawdown    float64
	maxDrawdown float64
}

// NewPositionSimulator validates the risk settings. Break-even activation
// below the fee floor is rejected here, whether or not break-even is on.
func NewPositionSimulator(symbol string, risk config.RiskConfig, logger *zap.Logger) (*PositionSimulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if risk.Leverage < 1 {
		return nil, fmt.Errorf("%w: leverage must be at least 1", config.ErrInvalidConfig)
	}
	if risk.InitialBalance <= 0 {
		return nil, fmt.Errorf("%w: initial balance must be positive", config.ErrInvalidConfig)
	}
	if risk.StopLossROI <= 0 || risk.TakeProfitROI <= 0 {
		return nil, fmt.Errorf("%w: stop loss and take profit ROI must be positive", config.ErrInvalidConfig)
	}
	if floor := risk.BreakEvenFloor(); risk.BreakEvenActivationROI < floor {
		return nil, fmt.Errorf("%w: break-even activation %.4f%% ROI is below the fee floor %.4f%%",
			config.ErrInvalidConfig, risk.BreakEvenActivationROI, floor)
	}

	initial := dmath.D(risk.InitialBalance)
	return &PositionSimulator{
		symbol: symbol,
		logger: logger,
		risk: riskParams{
			sizePct:        dmath.D(risk.PositionSizePct),
			leverage:       risk.Leverage,
			stopLossROI:    dmath.D(risk.StopLossROI),
			takeProfitROI:  dmath.D(risk.TakeProfitROI),
			beEnabled:      risk.BreakEvenEnabled,
			beActivation:   dmath.D(risk.BreakEvenActivationROI),
			beBuffer:       dmath.D(risk.BreakEvenBufferROI),
			trailEnabled:   risk.TrailingEnabled,
			trailActivate:  dmath.D(risk.TrailingActivationROI),
			trailDistance:  dmath.D(risk.TrailingDistanceROI),
			trailStep:      dmath.D(risk.TrailingStepROI),
			entryFee:       dmath.D(risk.EntryFee),
			exitFee:        dmath.D(risk.ExitFee),
			slippagePct:    dmath.D(risk.SlippagePct),
			initialBalance: initial,
		},
		balance: initial,
		peak:    initial,
	}, nil
}

func (s *PositionSimulator) Balance() decimal.Decimal { return s.balance }

func (s *PositionSimulator) HasPosition() bool { return s.position != nil }

// Position returns a copy of the open position, or nil.
func (s *PositionSimulator) Position() *domain.Position {
	if s.position == nil {
		return nil
	}
	p := *s.position
	return &p
}

func (s *PositionSimulator) Trades() []domain.TradeRecord {
	return append([]domain.TradeRecord(nil), s.trades...)
}

func (s *PositionSimulator) Equity() []domain.EquityPoint {
	return append([]domain.EquityPoint(nil), s.equity...)
}

// Drawdown is the current percent drop from the equity peak.
func (s *PositionSimulator) Drawdown() float64 { return s.drawdown }

func (s *PositionSimulator) MaxDrawdown() float64 { return s.maxDrawdown }

// Open enters at the candle close. The opening candle is not checked for exits.
func (s *PositionSimulator) Open(side domain.Side, c domain.Candle) error {
	if s.position != nil {
		return ErrPositionOpen
	}
	if side != domain.SideLong && side != domain.SideShort {
		return fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
	if !s.balance.IsPositive() {
		return ErrInsufficientBalance
	}
	entry := dmath.D(c.Close)
	if !entry.IsPositive() {
		return fmt.Errorf("invalid entry price %v", c.Close)
	}

	long := side == domain.SideLong
	sizing := dmath.PositionSize(s.balance, s.risk.sizePct, s.risk.leverage, entry)
	s.position = &domain.Position{
		Symbol:     s.symbol,
		Side:       side,
		EntryPrice: entry,
		Size:       sizing.Size,
		Leverage:   s.risk.leverage,
		StopLoss:   dmath.PriceAtROI(long, entry, s.risk.stopLossROI.Neg(), s.risk.leverage),
		TakeProfit: dmath.PriceAtROI(long, entry, s.risk.takeProfitROI, s.risk.leverage),
		EntryTime:  candleTime(c),
		Margin:     sizing.Margin,
		HighestROI: decimal.Zero,
		BestPrice:  entry,
		StopSource: domain.CloseStopLoss,
	}

	s.logger.Debug("Position opened",
		zap.String("symbol", s.symbol),
		zap.String("side", string(side)),
		zap.String("entry", entry.String()),
		zap.String("size", sizing.Size.String()),
		zap.String("stop", s.position.StopLoss.String()),
		zap.String("take_profit", s.position.TakeProfit.String()),
	)
	return nil
}

// Update advances the open position by one candle and returns the trade if
// it closed.
func (s *PositionSimulator) Update(c domain.Candle) *domain.TradeRecord {
	p := s.position
	if p == nil {
		return nil
	}
	long := p.Side == domain.SideLong
	closePrice := dmath.D(c.Close)

	roi := dmath.ROI(long, p.EntryPrice, closePrice, p.Leverage)
	if roi.GreaterThan(p.HighestROI) {
		p.HighestROI = roi
		p.BestPrice = closePrice
	}

	if s.risk.beEnabled && !p.BreakEvenTriggered && roi.GreaterThanOrEqual(s.risk.beActivation) {
		p.BreakEvenTriggered = true
		candidate := dmath.PriceAtROI(long, p.EntryPrice, s.risk.beBuffer, p.Leverage)
		if dmath.MoreFavorable(long, candidate, p.StopLoss) {
			p.StopLoss = candidate
			p.StopSource = domain.CloseBreakEven
		}
	}

	if s.risk.trailEnabled && p.HighestROI.GreaterThanOrEqual(s.risk.trailActivate) {
		p.TrailingActive = true
		lockROI := p.HighestROI.Sub(s.risk.trailDistance)
		if s.risk.trailStep.IsPositive() {
			lockROI = lockROI.Div(s.risk.trailStep).Floor().Mul(s.risk.trailStep)
		}
		candidate := dmath.PriceAtROI(long, p.EntryPrice, lockROI, p.Leverage)
		if dmath.MoreFavorable(long, candidate, p.StopLoss) {
			p.StopLoss = candidate
			p.StopSource = domain.CloseTrailingStop
		}
	}

	open, high, low := dmath.D(c.Open), dmath.D(c.High), dmath.D(c.Low)
	var hitStop, hitTP bool
	if long {
		hitStop = low.LessThanOrEqual(p.StopLoss)
		hitTP = high.GreaterThanOrEqual(p.TakeProfit)
	} else {
		hitStop = high.GreaterThanOrEqual(p.StopLoss)
		hitTP = low.LessThanOrEqual(p.TakeProfit)
	}

	switch {
	case hitStop:
		fill := p.StopLoss
		// gapped through the stop: fill at the open
		if (long && open.LessThan(fill)) || (!long && open.GreaterThan(fill)) {
			fill = open
		}
		return s.close(fill, candleTime(c), p.StopSource)
	case hitTP:
		fill := p.TakeProfit
		if (long && open.GreaterThan(fill)) || (!long && open.LessThan(fill)) {
			fill = open
		}
		return s.close(fill, candleTime(c), domain.CloseTakeProfit)
	}
	return nil
}

// ForceClose exits at the candle close and re-marks that candle's equity.
func (s *PositionSimulator) ForceClose(c domain.Candle) *domain.TradeRecord {
	if s.position == nil {
		return nil
	}
	tr := s.close(dmath.D(c.Close), candleTime(c), domain.CloseEndOfRun)
	if n := len(s.equity); n > 0 && s.equity[n-1].Timestamp.Equal(candleTime(c)) {
		s.equity = s.equity[:n-1]
	}
	s.MarkEquity(c)
	return tr
}

// MarkEquity records balance plus unrealized PnL at the candle close.
func (s *PositionSimulator) MarkEquity(c domain.Candle) domain.EquityPoint {
	value := s.balance
	if p := s.position; p != nil {
		value = value.Add(dmath.GrossPnL(p.Side == domain.SideLong, p.EntryPrice, dmath.D(c.Close), p.Size))
	}
	if value.GreaterThan(s.peak) {
		s.peak = value
	}
	s.drawdown = dmath.F(dmath.SafeDiv(s.peak.Sub(value), s.peak, decimal.Zero).Mul(decimal.NewFromInt(100)))
	if s.drawdown > s.maxDrawdown {
		s.maxDrawdown = s.drawdown
	}

	pt := domain.EquityPoint{Timestamp: candleTime(c), Value: value}
	s.equity = append(s.equity, pt)
	return pt
}

func (s *PositionSimulator) close(fill decimal.Decimal, at time.Time, reason domain.CloseReason) *domain.TradeRecord {
	p := s.position
	long := p.Side == domain.SideLong

	exit := dmath.Slip(long, true, fill, s.risk.slippagePct)
	fees := dmath.Fee(p.EntryPrice.Mul(p.Size), s.risk.entryFee).
		Add(dmath.Fee(exit.Mul(p.Size), s.risk.exitFee))
	pnl := dmath.GrossPnL(long, p.EntryPrice, exit, p.Size).Sub(fees)
	roi := dmath.SafeDiv(pnl, p.Margin, decimal.Zero).Mul(decimal.NewFromInt(100))

	s.balance = s.balance.Add(pnl)
	tr := domain.TradeRecord{
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exit,
		Size:       p.Size,
		Leverage:   p.Leverage,
		Margin:     p.Margin,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		EntryTime:  p.EntryTime,
		ExitTime:   at,
		Reason:     reason,
		Fees:       fees,
		PnL:        pnl,
		ROI:        roi,
		HighestROI: p.HighestROI,
	}
	s.trades = append(s.trades, tr)
	s.position = nil

	s.logger.Debug("Position closed",
		zap.String("symbol", tr.Symbol),
		zap.String("reason", string(reason)),
		zap.String("exit", exit.String()),
		zap.String("pnl", pnl.String()),
		zap.String("balance", s.balance.String()),
	)
	return &tr
}

func candleTime(c domain.Candle) time.Time {
	return time.UnixMilli(c.Time).UTC()
}
