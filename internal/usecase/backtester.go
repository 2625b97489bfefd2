package usecase

import (
	"errors"
	"fmt"
	"math"

	"github.com/Ritenoob/cypherscoping--sub005/internal/config"
	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/pkg/dmath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrSeriesLength = errors.New("indicator series length does not match candles")

// BacktestResult is the outcome of one replay.
type BacktestResult struct {
	FinalBalance      decimal.Decimal      `json:"final_balance"`
	TotalReturn       float64              `json:"total_return"`
	TotalTrades       int                  `json:"total_trades"`
	WinRate           float64              `json:"win_rate"`
	ProfitFactor      float64              `json:"profit_factor"`
	SharpeRatio       float64              `json:"sharpe_ratio"`
	MaxDrawdown       float64              `json:"max_drawdown"`
	Trades            []domain.TradeRecord `json:"trades"`
	Equity            []domain.EquityPoint `json:"equity"`
	SignalsAuthorized int                  `json:"signals_authorized"`
	GateBlocks        map[string]int       `json:"gate_blocks"`
}

// Backtester replays candles through the signal generator and simulator.
type Backtester struct {
	cfg    config.Config
	logger *zap.Logger
}

func NewBacktester(cfg config.Config, logger *zap.Logger) (*Backtester, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backtester{cfg: cfg.Clone(), logger: logger}, nil
}

// RunBacktest is Backtester.Run without logging.
func RunBacktest(candles []domain.Candle, series []domain.IndicatorFrame, cfg config.Config) (*BacktestResult, error) {
	bt, err := NewBacktester(cfg, nil)
	if err != nil {
		return nil, err
	}
	return bt.Run(candles, series)
}

// Run is deterministic: the same candles, series and config always give the
// same result. Each call starts from a fresh simulator.
func (b *Backtester) Run(candles []domain.Candle, series []domain.IndicatorFrame) (*BacktestResult, error) {
	if len(series) != len(candles) {
		return nil, fmt.Errorf("%w: %d candles, %d frames", ErrSeriesLength, len(candles), len(series))
	}

	gen, err := NewSignalGenerator(b.cfg, b.logger)
	if err != nil {
		return nil, err
	}
	sim, err := NewPositionSimulator(b.cfg.Symbol, b.cfg.Risk, b.logger)
	if err != nil {
		return nil, err
	}

	res := &BacktestResult{GateBlocks: make(map[string]int)}
	var prev *float64
	for i, c := range candles {
		sim.Update(c)

		frame := series[i]
		sig := gen.Generate(frame.Results, frame.Microstructure, DecisionContext{
			Symbol:      b.cfg.Symbol,
			Timestamp:   candleTime(c),
			PrevScore:   prev,
			IsChoppy:    frame.IsChoppy,
			ATRPercent:  frame.ATRPercent,
			Trend:       frame.Trend,
			DrawdownPct: sim.Drawdown(),
		})
		score := sig.CompositeScore
		prev = &score

		for _, r := range sig.BlockReasons {
			res.GateBlocks[r]++
		}
		if sig.Authorized {
			res.SignalsAuthorized++
			if !sim.HasPosition() {
				if err := sim.Open(sig.Side, c); err != nil {
					b.logger.Warn("Failed to open simulated position", zap.Int("candle", i), zap.Error(err))
				}
			}
		}
		sim.MarkEquity(c)
	}
	if len(candles) > 0 {
		sim.ForceClose(candles[len(candles)-1])
	}

	res.FinalBalance = sim.Balance()
	res.Trades = sim.Trades()
	res.Equity = sim.Equity()
	res.MaxDrawdown = sim.MaxDrawdown()

	perf := ComputePerformance(dmath.D(b.cfg.Risk.InitialBalance), res.Trades, res.Equity, b.cfg.Backtest.PeriodsPerYear)
	res.TotalReturn = perf.TotalReturn
	res.TotalTrades = perf.TotalTrades
	res.WinRate = perf.WinRate
	res.ProfitFactor = perf.ProfitFactor
	res.SharpeRatio = perf.SharpeRatio

	b.logger.Info("Backtest finished",
		zap.String("symbol", b.cfg.Symbol),
		zap.Int("candles", len(candles)),
		zap.Int("trades", res.TotalTrades),
		zap.String("final_balance", res.FinalBalance.StringFixed(2)),
		zap.Float64("total_return", res.TotalReturn),
		zap.Float64("max_drawdown", res.MaxDrawdown),
	)
	return res, nil
}

// Performance summarizes a trade list and equity curve.
type Performance struct {
	TotalReturn  float64
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64
	SharpeRatio  float64
}

// ComputePerformance derives percent return, win rate (percent), profit
// factor and annualized Sharpe. Profit factor is 0 with no losing trade.
func ComputePerformance(initial decimal.Decimal, trades []domain.TradeRecord, equity []domain.EquityPoint, periodsPerYear float64) Performance {
	var perf Performance
	perf.TotalTrades = len(trades)

	final := initial
	if n := len(equity); n > 0 {
		final = equity[n-1].Value
	}
	perf.TotalReturn = dmath.F(dmath.SafeDiv(final.Sub(initial), initial, decimal.Zero).Mul(decimal.NewFromInt(100)))

	gross, loss := decimal.Zero, decimal.Zero
	wins := 0
	for _, t := range trades {
		if t.PnL.IsPositive() {
			wins++
			gross = gross.Add(t.PnL)
		} else {
			loss = loss.Add(t.PnL.Abs())
		}
	}
	if perf.TotalTrades > 0 {
		perf.WinRate = float64(wins) / float64(perf.TotalTrades) * 100
	}
	if loss.IsPositive() {
		perf.ProfitFactor = dmath.F(gross.DivRound(loss, 8))
	}

	perf.SharpeRatio = sharpe(equity, periodsPerYear)
	return perf
}

func sharpe(equity []domain.EquityPoint, periodsPerYear float64) float64 {
	if len(equity) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := dmath.F(equity[i-1].Value)
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, dmath.F(equity[i].Value)/prev-1)
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	if periodsPerYear <= 0 {
		periodsPerYear = 1
	}
	return dmath.Finite(mean / std * math.Sqrt(periodsPerYear))
}
