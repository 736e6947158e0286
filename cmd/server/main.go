package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hey-granth/databridge/internal/config"
	"github.com/hey-granth/databridge/internal/logging"
	"github.com/hey-granth/databridge/internal/pipeline"
	"github.com/hey-granth/databridge/internal/storage"
	"github.com/hey-granth/databridge/internal/store"
	"github.com/hey-granth/databridge/internal/web"
)

// @title DataBridge API
// @version 1.0
// @description Declarative record-transformation pipelines over uploaded tabular files.
// @BasePath /api
func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"storage_dir", cfg.Storage.Dir,
		"runs_max_concurrent", cfg.Runs.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Connect to the store; both backends create their schema on open.
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open store", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Ping(ctx); err != nil {
		slog.Error("failed to ping store", "error", err)
		os.Exit(1)
	}
	slog.Info("store connected", "driver", cfg.Database.Driver)

	// Prepare the artifact areas (uploads/ and outputs/)
	files, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		slog.Error("failed to prepare storage directories", "error", err)
		os.Exit(1)
	}

	service := pipeline.NewService(st, files, cfg.Runs)
	server := web.NewServer(cfg, service)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active runs to complete (with timeout)
		status := service.RunnerStatus()
		if status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
