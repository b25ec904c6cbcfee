package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/quorum/service/config"
	"github.com/brojonat/quorum/service/metrics"
	"github.com/brojonat/quorum/service/multisig"
	"github.com/brojonat/quorum/service/temporal"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the account views.
type Server struct {
	cfg       *config.Config
	store     AccountStore
	scheduler temporal.Scheduler
	views     *accountViews
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The scheduler is optional - if nil, registering an account does not start syncing it.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(cfg *config.Config, store AccountStore, loader Loader, scheduler temporal.Scheduler, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reconciler := multisig.NewReconciler(logger,
		multisig.WithDefaultDecimals(cfg.DefaultTokenDecimals),
		multisig.WithFractionDigits(cfg.MaxFractionDigits),
	)

	return &Server{
		cfg:       cfg,
		store:     store,
		scheduler: scheduler,
		views: &accountViews{
			loader:     loader,
			reconciler: reconciler,
			cache:      cache.New(cfg.CacheTTL, 2*cfg.CacheTTL+time.Minute),
			ttl:        cfg.CacheTTL,
			location:   loc,
			pageSize:   cfg.PageSize,
			metrics:    m,
			logger:     logger,
		},
		metrics: m,
		logger:  logger,
	}, nil
}

// Handler builds the routed, wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Account directory routes
	mux.Handle("POST /api/v1/accounts", handleRegisterAccount(s.store, s.scheduler, s.views, s.cfg, s.logger))
	mux.Handle("GET /api/v1/accounts", handleListAccounts(s.store, s.logger))
	mux.Handle("GET /api/v1/accounts/{address}", handleGetAccount(s.store, s.logger))
	mux.Handle("DELETE /api/v1/accounts/{address}", handleUnregisterAccount(s.store, s.scheduler, s.views, s.logger))
	mux.Handle("PUT /api/v1/accounts/{address}/inputs", handleReplaceInputs(s.store, s.views, s.logger))

	// Reconciled views
	mux.Handle("GET /api/v1/accounts/{address}/transactions", handleListTransactions(s.views))
	mux.Handle("GET /api/v1/accounts/{address}/transactions/{id}", handleGetTransaction(s.views))
	mux.Handle("GET /api/v1/accounts/{address}/summary", handleSummary(s.views))
	mux.Handle("GET /api/v1/accounts/{address}/diagnostics", handleDiagnostics(s.views))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(metrics.HTTPMetricsMiddleware(s.metrics)(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.ServerAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.cfg.ServerAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
