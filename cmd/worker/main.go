package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"nvr-worker-go/internal/api"
	"nvr-worker-go/internal/api/handlers"
	"nvr-worker-go/internal/config"
	"nvr-worker-go/internal/logging"
	"nvr-worker-go/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logging.Setup(cfg)

	cameras, err := config.LoadCameras(cfg.CamerasConfig)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CamerasConfig).Msg("Failed to load camera feeds")
	}

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("cameras", len(cameras.CameraFeeds)).
		Str("model", cfg.DetectorModel).
		Msg("Starting NVR worker")

	container, err := services.NewServiceContainer(cfg, cameras)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start pipeline")
	}

	var recordings handlers.RecordingStore
	if container.Catalog != nil {
		recordings = container.Catalog
	}
	server := api.NewServer(cfg, container, recordings)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancel()
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Pipeline shutdown incomplete")
	} else {
		log.Info().Msg("Shutdown complete")
	}
}
