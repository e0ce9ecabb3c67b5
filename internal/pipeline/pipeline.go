// Package pipeline orchestrates an upload: extraction, categorization,
// category resolution, persistence and the returned summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/store"
)

// ErrProcessingFailed wraps every failure of the catalog read or the store
// write. Extraction and categorization problems never surface as errors.
var ErrProcessingFailed = errors.New("processing failed")

// Processor runs uploads through the upload pipeline.
type Processor struct {
	extractor    TransactionExtractor
	categorizer  TransactionCategorizer
	categories   store.CategoryRepository
	transactions store.TransactionRepository
}

// NewProcessor wires a Processor from its collaborators.
func NewProcessor(
	ext TransactionExtractor,
	cat TransactionCategorizer,
	categories store.CategoryRepository,
	transactions store.TransactionRepository,
) *Processor {
	return &Processor{
		extractor:    ext,
		categorizer:  cat,
		categories:   categories,
		transactions: transactions,
	}
}

// Process runs one file for the default tenant against the given catalog.
func (p *Processor) Process(ctx context.Context, content, filename string, catalog []domain.Category) (*Summary, error) {
	return p.run(ctx, &PipelineState{
		UserID:   DefaultUserID,
		Filename: filename,
		Content:  content,
		Catalog:  catalog,
	})
}

// ProcessUpload loads the tenant's catalog and processes one file.
func (p *Processor) ProcessUpload(ctx context.Context, userID, filename, content string) (*Summary, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	catalog, err := p.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading categories: %w", ErrProcessingFailed, err)
	}

	return p.run(ctx, &PipelineState{
		UserID:   userID,
		Filename: filename,
		Content:  content,
		Catalog:  catalog,
	})
}

func (p *Processor) run(ctx context.Context, state *PipelineState) (*Summary, error) {
	log := logger.FromContext(ctx).With().
		Str("user_id", state.UserID).
		Str("filename", state.Filename).
		Logger()
	ctx = logger.WithContext(ctx, log)

	pl := NewUploadPipeline(p.extractor, p.categorizer, p.transactions)
	if err := pl.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Upload processing failed")
		return nil, fmt.Errorf("%w: %w", ErrProcessingFailed, err)
	}

	ext := state.Extraction
	log.Info().
		Str("format", string(state.Format)).
		Int("processed", state.Summary.TransactionsProcessed).
		Int("needs_review", state.Summary.NeedsReview).
		Int("dropped", ext.Dropped).
		Int("date_fallbacks", ext.DateFallbacks).
		Str("extraction_fallback", string(ext.Fallback)).
		Msg("Upload processed")

	return state.Summary, nil
}
