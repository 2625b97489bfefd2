package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
}

// PostgresStore implements domain.ResultRepository over a pgx pool. Decimal
// columns are TEXT, matching the SQLite layout.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string, cfg PoolConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`create table if not exists backtest_runs (
			id text primary key,
			symbol text not null,
			interval text not null,
			started_at timestamptz not null,
			candles int not null,
			final_balance text not null,
			total_return double precision not null,
			total_trades int not null,
			win_rate double precision not null,
			profit_factor double precision not null,
			sharpe_ratio double precision not null,
			max_drawdown double precision not null
		);`,
		`create table if not exists backtest_trades (
			id bigserial primary key,
			run_id text not null references backtest_runs(id) on delete cascade,
			symbol text not null,
			side text not null,
			entry_price text not null,
			exit_price text not null,
			size text not null,
			leverage int not null,
			margin text not null,
			stop_loss text not null,
			take_profit text not null,
			entry_time timestamptz not null,
			exit_time timestamptz not null,
			reason text not null,
			fees text not null,
			pnl text not null,
			roi text not null,
			highest_roi text not null
		);`,
		`create index if not exists backtest_trades_run_idx on backtest_trades(run_id);`,
		`create table if not exists backtest_equity (
			run_id text not null references backtest_runs(id) on delete cascade,
			seq int not null,
			ts timestamptz not null,
			value text not null,
			primary key (run_id, seq)
		);`,
		`create table if not exists signals (
			id bigserial primary key,
			symbol text not null,
			ts timestamptz not null,
			composite_score double precision not null,
			indicator_score double precision not null,
			microstructure_score double precision not null,
			authorized boolean not null,
			side text not null,
			confidence double precision not null,
			tier text not null,
			signal_type text not null,
			threshold_used double precision not null,
			gate_applied boolean not null,
			bullish_count int not null,
			bearish_count int not null,
			active_indicators int not null,
			confirmations int not null,
			indicator_scores text not null,
			block_reasons text not null
		);`,
		`create index if not exists signals_symbol_idx on signals(symbol, id desc);`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `insert into backtest_runs (`+runColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.Symbol, run.Interval, run.StartedAt.UTC(), run.Candles, run.FinalBalance.String(),
		run.TotalReturn, run.TotalTrades, run.WinRate, run.ProfitFactor, run.SharpeRatio, run.MaxDrawdown)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, t := range run.Trades {
		batch.Queue(`insert into backtest_trades (run_id, `+tradeColumns+`)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			run.ID, t.Symbol, string(t.Side), t.EntryPrice.String(), t.ExitPrice.String(), t.Size.String(),
			t.Leverage, t.Margin.String(), t.StopLoss.String(), t.TakeProfit.String(),
			t.EntryTime.UTC(), t.ExitTime.UTC(), string(t.Reason), t.Fees.String(), t.PnL.String(),
			t.ROI.String(), t.HighestROI.String())
	}
	for i, p := range run.Equity {
		batch.Queue(`insert into backtest_equity (run_id, seq, ts, value) values ($1, $2, $3, $4)`,
			run.ID, i, p.Timestamp.UTC(), p.Value.String())
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert run history: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	row := s.pool.QueryRow(ctx, `select `+runColumns+` from backtest_runs where id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*domain.BacktestRun, error) {
	rows, err := s.pool.Query(ctx, `select `+runColumns+` from backtest_runs order by started_at desc limit $1`, limit)
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

func (s *PostgresStore) ListTrades(ctx context.Context, runID string) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `select `+tradeColumns+` from backtest_trades where run_id = $1 order by id`, runID)
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

func (s *PostgresStore) ListEquity(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.pool.Query(ctx, `select ts, value from backtest_equity where run_id = $1 order by seq`, runID)
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

func (s *PostgresStore) SaveSignal(ctx context.Context, sig *domain.CompositeSignal) error {
	scores, reasons, err := encodeSignalDetails(sig)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `insert into signals (`+signalColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		sig.Symbol, sig.Timestamp.UTC(), sig.CompositeScore, sig.IndicatorScore, sig.MicrostructureScore, sig.Authorized,
		string(sig.Side), sig.Confidence, string(sig.SignalStrength), sig.SignalType, sig.ThresholdUsed, sig.GateApplied,
		sig.BullishCount, sig.BearishCount, sig.ActiveIndicators, sig.Confirmations, scores, reasons)
	return err
}

func (s *PostgresStore) ListSignals(ctx context.Context, symbol string, limit int) ([]*domain.CompositeSignal, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if symbol == "" {
		rows, err = s.pool.Query(ctx, `select `+signalColumns+` from signals order by id desc limit $1`, limit)
	} else {
		rows, err = s.pool.Query(ctx, `select `+signalColumns+` from signals where symbol = $1 order by id desc limit $2`, symbol, limit)
	}
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
