/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the accrual scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  APP_PORT, APP_ENV, LOG_LEVEL, DB_PATH, ACCRUAL_INTERVAL, ACCRUAL_ENABLED,
  ABSENCE_TYPE_MAPPING, TIMEZONE, SCHEDULE_DEFAULT_START,
  LATE_GRACE_MINUTES, CORS_ORIGINS. See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the accrual scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/leave.db"
  ./server -db=":memory:" -port=3000
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/config"
	"github.com/warp/leave-ledger/store/sqlite"
)

const version = "v1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags override the environment
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()
	cfg.App.Port = *port
	cfg.Database.Path = *dbPath
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("app", "leave-ledger"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	loc, _ := cfg.Location()
	schedule, _ := cfg.DefaultSchedule()
	mapping, _ := cfg.TypeMapping()

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, api.HandlerConfig{
		TypeMapping:     mapping,
		Location:        loc,
		DefaultSchedule: schedule,
		Log:             logger,
	})

	router := api.NewRouter(handler, api.RouterOptions{
		RequestLogger:  api.NewRequestLogger(version, cfg.App.Env, level, cfg.IsProduction()),
		AllowedOrigins: cfg.CORSOrigins,
		Version:        version,
		Env:            cfg.App.Env,
	})

	scheduler := api.NewAccrualScheduler(handler.Accruals, logger)
	scheduler.Interval = cfg.Accrual.Interval
	scheduler.Enabled = cfg.Accrual.Enabled
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.App.Port,
			"db", cfg.Database.Path,
			"timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
