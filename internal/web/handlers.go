package web

import (
	"errors"
	"net/http"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/Ritenoob/cypherscoping--sub005/internal/infrastructure/storage"
	"go.uber.org/zap"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatestSignal(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	signals, err := s.repo.ListSignals(r.Context(), symbol, 1)
	if err != nil {
		s.logger.Error("Failed to load latest signal", zap.String("symbol", symbol), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load signal")
		return
	}
	if len(signals) == 0 {
		s.writeError(w, http.StatusNotFound, "no signal yet")
		return
	}
	s.writeJSON(w, http.StatusOK, signals[0])
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	signals, err := s.repo.ListSignals(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []*domain.CompositeSignal{}
	}
	s.writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	runs, err := s.repo.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*domain.BacktestRun{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunTrades(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	trades := run.Trades
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleRunEquity(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	equity := run.Equity
	if equity == nil {
		equity = []domain.EquityPoint{}
	}
	s.writeJSON(w, http.StatusOK, equity)
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*domain.BacktestRun, bool) {
	id := r.PathValue("id")
	run, err := s.repo.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("Failed to load run", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}
