// Package main is the entry point for the HXZ factor server.
// It loads monthly security data from an Excel workbook, computes the
// investment and profitability factor series and serves stored runs over HTTP.
//
// Startup sequence:
// 1. Load configuration from environment variables (.env supported)
// 2. Initialize logging
// 3. Wire dependencies (results database, repository, pipeline, scheduler)
// 4. Start the HTTP server and the optional recompute schedule
// 5. Wait for a shutdown signal and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/hxzfactors/internal/config"
	"github.com/aristath/hxzfactors/internal/di"
	"github.com/aristath/hxzfactors/internal/server"
	"github.com/aristath/hxzfactors/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("workbook", cfg.Workbook).
		Msg("Starting HXZ factor server")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:        log,
		DB:         container.FactorsDB,
		Runs:       container.RunRepo,
		Recomputer: container.Service,
		DataDir:    cfg.DataDir,
		Workbook:   cfg.Workbook,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	if jobs.Recompute != nil {
		container.Scheduler.Start()
		log.Info().Str("schedule", cfg.RecomputeSchedule).Msg("Recompute schedule active")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
