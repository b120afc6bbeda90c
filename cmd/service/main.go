// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"repohealth/internal/api"
	"repohealth/internal/cache"
	"repohealth/internal/config"
	"repohealth/internal/github"
	"repohealth/internal/gitrepo"
	"repohealth/internal/jobs"
	"repohealth/internal/metrics"
	"repohealth/internal/pipeline"
	"repohealth/internal/report"
	"repohealth/internal/status"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize the cache store and status tracker
	store, err := cache.NewStore(cfg.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	tracker := status.NewTracker(store, logger)
	logger.Info("Cache store ready", "dir", store.Root())

	// 5. Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// 6. Initialize application components
	ghClient, err := github.NewClient(cfg.GithubToken, cfg.GithubAPIURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}
	fetcher := github.NewFetcher(nil, m, logger, cfg.PageSize, cfg.MaxInflight, cfg.ErrorBudget, cfg.FetchCooldown)
	cloner := gitrepo.NewCloner(logger)
	coordinator := pipeline.NewCoordinator(ghClient, fetcher, cloner, store, tracker, m, logger)
	table := jobs.NewTable(ctx, coordinator, cfg.WorkerCount, logger)

	transforms := report.NewRegistry()
	if err := transforms.Validate(); err != nil {
		return fmt.Errorf("invalid transform registry: %w", err)
	}

	// 7. Start the HTTP server
	router := api.NewRouter(table, store, tracker, coordinator, transforms, cfg.GithubToken,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 8. Wait for shutdown signal
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
