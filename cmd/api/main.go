// Package main is the entry point for the FloodLoop API server.
//
// It loads configuration, connects the pgx pool, wires the domain components
// (upstream weather client, risk scorer, live feed, history recorder,
// repositories) into the core chassis, and serves HTTP until interrupted.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"floodloop/internal/alerts"
	"floodloop/internal/api/handlers"
	"floodloop/internal/config"
	"floodloop/internal/core"
	"floodloop/internal/db"
	"floodloop/internal/history"
	"floodloop/internal/observability"
	"floodloop/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("floodloop API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Repositories.
	cityRepo := db.NewCityRepository(pool)
	alertRepo := db.NewAlertRepository(pool)
	snapshotRepo := db.NewSnapshotRepository(pool)
	searchRepo := db.NewSearchRepository(pool)
	apiKeyRepo := db.NewAPIKeyRepository(pool)
	statsRepo := db.NewStatsRepository(pool)

	// Domain components.
	client := weather.NewClient(cfg.Weather, logger)
	evaluator := alerts.NewEvaluator(clock, logger)
	recorder := history.NewRecorder(db.NewRecorderStore(pool), evaluator, clock, logger)
	feed := weather.NewLiveFeed(client, cfg.Feed, clock, logger)

	// Core chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.Authenticator = handlers.NewKeyAuthenticator(apiKeyRepo, logger)
	srv.OnShutdown(pool.Close)
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "database",
		CheckFn:   pool.Ping,
	})

	// Domain handlers.
	weatherHandler := handlers.NewWeatherHandler(client, client, recorder, searchRepo, feed, metrics, logger)
	cityHandler := handlers.NewCityHandler(cityRepo, srv.Validator, logger)
	alertHandler := handlers.NewAlertHandler(alertRepo, cityRepo, client, recorder, metrics, srv.Validator, logger)
	historyHandler := handlers.NewHistoryHandler(searchRepo, snapshotRepo, logger)
	floodHistoryHandler := handlers.NewFloodHistoryHandler(logger)
	adminHandler := handlers.NewAdminHandler(apiKeyRepo, statsRepo, srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		weatherHandler.RegisterRoutes,
		cityHandler.RegisterRoutes,
		alertHandler.RegisterRoutes,
		historyHandler.RegisterRoutes,
		floodHistoryHandler.RegisterRoutes,
	)
	srv.AdminRouteRegistrars = append(srv.AdminRouteRegistrars, adminHandler.RegisterRoutes)

	srv.MountRoutes()

	return runHTTPServer(ctx, srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server resource shutdown error", "error", err)
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
