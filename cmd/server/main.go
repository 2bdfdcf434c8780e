// Package main is the entry point for the structured-note outcome service.
// It serves the product API and event streams, and runs the barrier monitor
// on a schedule so breaches, autocalls and coupon payments are recorded as they happen.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/noteengine/internal/config"
	"github.com/aristath/noteengine/internal/di"
	"github.com/aristath/noteengine/internal/server"
	"github.com/aristath/noteengine/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Str("monitor_schedule", cfg.MonitorSchedule).
		Msg("Starting note engine")

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close notes database")
		}
	}()

	srv := server.New(server.Config{
		Log:      log,
		DB:       container.NotesDB,
		EventBus: container.EventBus,
		Products: container.ProductService,
		Jobs:     container.Scheduler,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	container.Scheduler.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop scheduling new observations; a running monitor pass is allowed to finish
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
