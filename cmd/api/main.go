package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-companion/internal/api"
	"github.com/dvloznov/budget-companion/internal/api/handlers"
	"github.com/dvloznov/budget-companion/internal/backend"
	"github.com/dvloznov/budget-companion/internal/config"
	"github.com/dvloznov/budget-companion/internal/jobs"
	"github.com/dvloznov/budget-companion/internal/logger"
)

func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()
	cfg.Port = *port

	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

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
	if files == nil {
		log.Warn().Msg("No GCS bucket configured - async uploads are queued inline")
	}

	queue, err := backend.NewJobs(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create job queue")
	}

	// With RabbitMQ the worker binary consumes; otherwise jobs run in-process.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if !cfg.UseAMQP() {
		if err := queue.Consumer.Start(workerCtx, jobs.NewProcessFileHandler(proc, files)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job worker")
		}
	}

	router := api.NewRouter(log, api.Handlers{
		Upload:       handlers.NewUploadHandler(proc, queue.Publisher, files, cfg.UserID, cfg.JobMaxRetries),
		Transactions: handlers.NewTransactionsHandler(repo, cfg.UserID),
		Categories:   handlers.NewCategoriesHandler(repo, cfg.UserID),
		Jobs:         handlers.NewJobsHandler(queue.Store),
	})

	// Uploads run the model synchronously, so writes get a long timeout.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.DataBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()
	if !cfg.UseAMQP() {
		if err := queue.Consumer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
	}

	if err := queue.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
