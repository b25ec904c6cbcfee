package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/quorum/service/config"
	"github.com/brojonat/quorum/service/db"
	"github.com/brojonat/quorum/service/logger"
	"github.com/brojonat/quorum/service/metrics"
	"github.com/brojonat/quorum/service/server"
	"github.com/brojonat/quorum/service/source"
	"github.com/brojonat/quorum/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := config.MustLoad()

	logger := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bring the schema up to date before serving
	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	m := metrics.NewMetrics(nil)

	// Initialize database store and source loader
	store := db.NewStore(dbPool).WithMetrics(m)
	loader := source.NewLoader(store, logger,
		source.WithRetries(cfg.SourceRetries),
		source.WithMetrics(m),
	)

	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	httpServer, err := server.New(cfg, store, loader, temporalClient, m, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	logger.Info("account service ready",
		"temporal_host", cfg.TemporalHost,
		"task_queue", cfg.TemporalTaskQueue,
		"cache_ttl", cfg.CacheTTL,
		"timezone", cfg.DisplayTimezone,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
