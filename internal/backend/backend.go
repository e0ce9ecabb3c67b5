// Package backend builds the storage, model, archive and queue components
// selected by the configuration. Every binary wires itself through here.
package backend

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-companion/internal/archive"
	"github.com/dvloznov/budget-companion/internal/categorizer"
	"github.com/dvloznov/budget-companion/internal/config"
	"github.com/dvloznov/budget-companion/internal/extractor"
	"github.com/dvloznov/budget-companion/internal/jobs"
	"github.com/dvloznov/budget-companion/internal/jobs/amqp"
	"github.com/dvloznov/budget-companion/internal/jobs/inmemory"
	"github.com/dvloznov/budget-companion/internal/llm"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/pipeline"
	"github.com/dvloznov/budget-companion/internal/store"
	"github.com/dvloznov/budget-companion/internal/store/bigquery"
	"github.com/dvloznov/budget-companion/internal/store/sqlite"
)

// OpenRepository opens the configured store and seeds the default catalog
// for the configured tenant.
func OpenRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	var repo store.Repository

	switch cfg.DataBackend {
	case config.BackendSQLite:
		r, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		repo = r
	case config.BackendBigQuery:
		r, err := bigquery.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		if err := r.EnsureTables(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("OpenRepository: %w", err)
		}
		repo = r
	default:
		return nil, fmt.Errorf("OpenRepository: unknown data backend %q", cfg.DataBackend)
	}

	seeded, err := repo.EnsureDefaultCategories(ctx, cfg.UserID)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("OpenRepository: seeding categories: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("backend", cfg.DataBackend).
		Int("seeded_categories", seeded).
		Msg("Repository ready")
	return repo, nil
}

// NewProcessor builds the model client and the upload processor on repo.
func NewProcessor(ctx context.Context, cfg *config.Config, repo store.Repository) (*pipeline.Processor, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, fmt.Errorf("NewProcessor: %w", err)
	}

	client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.ModelName)
	if err != nil {
		return nil, fmt.Errorf("NewProcessor: %w", err)
	}

	return NewProcessorWithClient(client, cfg, repo), nil
}

// NewProcessorWithClient builds the upload processor around an existing
// model client.
func NewProcessorWithClient(client llm.Client, cfg *config.Config, repo store.Repository) *pipeline.Processor {
	return pipeline.NewProcessor(
		extractor.New(client),
		categorizer.New(client, categorizer.WithConcurrency(cfg.CategorizeConcurrency)),
		repo,
		repo,
	)
}

// OpenArchive returns the GCS archive, or nil when no bucket is configured.
// The returned close function is never nil.
func OpenArchive(ctx context.Context, cfg *config.Config) (archive.Store, func() error, error) {
	if cfg.GCSBucket == "" {
		return nil, func() error { return nil }, nil
	}

	gcs, err := archive.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenArchive: %w", err)
	}
	return gcs, gcs.Close, nil
}

// Jobs is the job queue selected by the configuration.
type Jobs struct {
	Publisher jobs.Publisher
	Consumer  jobs.Consumer
	Store     jobs.JobStore
}

// NewJobs creates the RabbitMQ client when AMQP_URL is set and the
// in-process queue otherwise. Job state is tracked per process.
func NewJobs(cfg *config.Config) (*Jobs, error) {
	jobStore := inmemory.NewStore()

	if cfg.UseAMQP() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.Workers, jobStore)
		if err != nil {
			return nil, fmt.Errorf("NewJobs: %w", err)
		}
		return &Jobs{Publisher: client, Consumer: client, Store: jobStore}, nil
	}

	queue := inmemory.NewQueue(cfg.QueueBuffer, cfg.Workers, jobStore)
	return &Jobs{Publisher: queue, Consumer: queue, Store: jobStore}, nil
}
