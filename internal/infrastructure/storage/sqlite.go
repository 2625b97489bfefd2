package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements domain.ResultRepository. Decimals are stored as TEXT
// so balances round-trip exactly.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			candles INTEGER NOT NULL,
			final_balance TEXT NOT NULL,
			total_return REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			win_rate REAL NOT NULL,
			profit_factor REAL NOT NULL,
			sharpe_ratio REAL NOT NULL,
			max_drawdown REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			size TEXT NOT NULL,
			leverage INTEGER NOT NULL,
			margin TEXT NOT NULL,
			stop_loss TEXT NOT NULL,
			take_profit TEXT NOT NULL,
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			reason TEXT NOT NULL,
			fees TEXT NOT NULL,
			pnl TEXT NOT NULL,
			roi TEXT NOT NULL,
			highest_roi TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id);`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts DATETIME NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			ts DATETIME NOT NULL,
			composite_score REAL NOT NULL,
			indicator_score REAL NOT NULL,
			microstructure_score REAL NOT NULL,
			authorized BOOLEAN NOT NULL,
			side TEXT NOT NULL,
			confidence REAL NOT NULL,
			tier TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			threshold_used REAL NOT NULL,
			gate_applied BOOLEAN NOT NULL,
			bullish_count INTEGER NOT NULL,
			bearish_count INTEGER NOT NULL,
			active_indicators INTEGER NOT NULL,
			confirmations INTEGER NOT NULL,
			indicator_scores TEXT NOT NULL,
			block_reasons TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol, id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// SaveRun stores the run with its trades and equity curve in one transaction.
// An empty ID is assigned a new UUID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO backtest_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Interval, run.StartedAt.UTC(), run.Candles, run.FinalBalance,
		run.TotalReturn, run.TotalTrades, run.WinRate, run.ProfitFactor, run.SharpeRatio, run.MaxDrawdown)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, t := range run.Trades {
		_, err = tx.ExecContext(ctx, `INSERT INTO backtest_trades (run_id, `+tradeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.Size, t.Leverage, t.Margin, t.StopLoss, t.TakeProfit,
			t.EntryTime.UTC(), t.ExitTime.UTC(), t.Reason, t.Fees, t.PnL, t.ROI, t.HighestROI)
		if err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}

	for i, p := range run.Equity {
		_, err = tx.ExecContext(ctx, `INSERT INTO backtest_equity (run_id, seq, ts, value) VALUES (?, ?, ?, ?)`,
			run.ID, i, p.Timestamp.UTC(), p.Value)
		if err != nil {
			return fmt.Errorf("insert equity: %w", err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, symbol, interval, started_at, candles, final_balance, total_return, total_trades, win_rate, profit_factor, sharpe_ratio, max_drawdown`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if run.Trades, err = s.ListTrades(ctx, id); err != nil {
		return nil, err
	}
	if run.Equity, err = s.ListEquity(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the newest runs first, without trades or equity.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*domain.BacktestRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM backtest_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) ListTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tradeColumns+` FROM backtest_trades WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) ListEquity(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, value FROM backtest_equity WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.CompositeSignal) error {
	scores, reasons, err := encodeSignalDetails(sig)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO signals (`+signalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.Symbol, sig.Timestamp.UTC(), sig.CompositeScore, sig.IndicatorScore, sig.MicrostructureScore, sig.Authorized,
		sig.Side, sig.Confidence, sig.SignalStrength, sig.SignalType, sig.ThresholdUsed, sig.GateApplied,
		sig.BullishCount, sig.BearishCount, sig.ActiveIndicators, sig.Confirmations, scores, reasons)
	return err
}

// ListSignals returns the newest signals first. An empty symbol lists all.
func (s *SQLiteStore) ListSignals(ctx context.Context, symbol string, limit int) ([]*domain.CompositeSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CompositeSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
