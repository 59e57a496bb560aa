package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/Ideality/internal/api"
	"github.com/MikeSquared-Agency/Ideality/internal/config"
	"github.com/MikeSquared-Agency/Ideality/internal/hermes"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/rescore"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := connectStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	scorer, err := scoring.NewScorer(cfg.Normalization(), cfg.Clock(), logger)
	if err != nil {
		logger.Error("invalid scoring config", "error", err)
		os.Exit(1)
	}
	logger.Info("scorer ready", "evaluation_year", scorer.EvaluationYear())

	m := metrics.New(prometheus.DefaultRegisterer)

	// Rescore worker
	var worker *rescore.Worker
	if cfg.Rescore.Enabled {
		worker = rescore.New(db, hermesClient, scorer, m, cfg.Rescore, logger)
		worker.Start(ctx)
		defer worker.Stop()
		worker.SetupSubscriptions()
		logger.Info("rescore worker started", "interval", cfg.RescoreInterval(), "batch_size", cfg.Rescore.BatchSize)
	}

	// API server
	router := api.NewRouter(db, hermesClient, scorer, worker, m, cfg.API, cfg.Server, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if strings.EqualFold(cfg.Logging.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// connectStore retries the initial connection with exponential backoff, up
// to cfg.ConnectRetries extra attempts.
func connectStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*store.PostgresStore, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0

	retries := cfg.ConnectRetries
	if retries < 0 {
		retries = 0
	}

	var db *store.PostgresStore
	attempt := 0
	operation := func() error {
		attempt++
		s, err := store.NewPostgresStore(ctx, cfg.URL)
		if err != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", err)
			return err
		}
		db = s
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)); err != nil {
		return nil, err
	}
	return db, nil
}
