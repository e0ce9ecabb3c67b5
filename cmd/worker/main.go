package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-companion/internal/backend"
	"github.com/dvloznov/budget-companion/internal/config"
	"github.com/dvloznov/budget-companion/internal/jobs"
	"github.com/dvloznov/budget-companion/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if !cfg.UseAMQP() {
		log.Fatal().Msg("AMQP_URL is required: the worker consumes jobs published by the API through RabbitMQ")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	repo, err := backend.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open repository")
	}
	defer repo.Close()

	proc, err := backend.NewProcessor(ctx, cfg, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create processor")
	}

	files, closeFiles, err := backend.OpenArchive(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open archive")
	}
	defer closeFiles()

	queue, err := backend.NewJobs(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to job queue")
	}

	log.Info().Int("workers", cfg.Workers).Str("queue", cfg.AMQPQueue).Msg("Starting worker service")

	if err := queue.Consumer.Start(ctx, jobs.NewProcessFileHandler(proc, files)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop first so in-flight jobs finish before the context is cancelled.
	if err := queue.Consumer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job consumer")
	}
	cancel()

	if err := queue.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service stopped")
}
