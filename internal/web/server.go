package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Ritenoob/cypherscoping--sub005/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes read-only status: stored runs, recent signals and Prometheus metrics.
type Server struct {
	router *http.ServeMux
	server *http.Server
	repo   domain.ResultRepository
	logger *zap.Logger
}

func NewServer(port int, repo domain.ResultRepository, logger *zap.Logger) *Server {
	s := &Server{
		router: http.NewServeMux(),
		repo:   repo,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.Handle("GET /metrics", promhttp.Handler())
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Signals
	s.router.HandleFunc("GET /api/signal/latest", s.handleLatestSignal)
	s.router.HandleFunc("GET /api/signals", s.handleListSignals)

	// Backtest runs
	s.router.HandleFunc("GET /api/runs", s.handleListRuns)
	s.router.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	s.router.HandleFunc("GET /api/runs/{id}/trades", s.handleRunTrades)
	s.router.HandleFunc("GET /api/runs/{id}/equity", s.handleRunEquity)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
