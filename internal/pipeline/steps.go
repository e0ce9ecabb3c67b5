package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-companion/internal/categorizer"
	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/extractor"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/store"
)

// PipelineStep represents a single step in the upload pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	UserID   string
	Filename string
	Content  string
	Catalog  []domain.Category

	Format      extractor.Format
	Extraction  extractor.Result
	Categorized []domain.CategorizedTransaction
	Persistable []*domain.PersistableTransaction
	Summary     *Summary

	// Done stops the pipeline after the current step.
	Done bool
}

// Step 1: ExtractStep pulls cleaned transactions out of the file content.
// An empty result finishes the pipeline with a no-transactions summary.
type ExtractStep struct {
	Extractor TransactionExtractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Format = extractor.DetectFormat(state.Filename)
	log := logger.FromContext(ctx)
	log.Info().
		Str("filename", state.Filename).
		Str("format", string(state.Format)).
		Int("bytes", len(state.Content)).
		Msg("Extracting transactions")

	state.Extraction = s.Extractor.ExtractDetailed(ctx, state.Content, state.Filename)
	if len(state.Extraction.Transactions) == 0 {
		state.Summary = &Summary{
			Success: false,
			Message: NoTransactionsMessage,
		}
		state.Done = true
	}
	return nil
}

// Step 2: CategorizeStep assigns a category to every extracted transaction.
type CategorizeStep struct {
	Categorizer TransactionCategorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Categorized = s.Categorizer.CategorizeBatch(ctx, state.Extraction.Transactions, state.Catalog)
	if len(state.Categorized) != len(state.Extraction.Transactions) {
		return fmt.Errorf("CategorizeStep: got %d results for %d transactions",
			len(state.Categorized), len(state.Extraction.Transactions))
	}
	return nil
}

// Step 3: ResolveCategoriesStep maps category names to catalog ids.
type ResolveCategoriesStep struct{}

func (s *ResolveCategoriesStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)

	state.Persistable = make([]*domain.PersistableTransaction, 0, len(state.Categorized))
	for _, ct := range state.Categorized {
		id := categorizer.ResolveCategoryID(ct.CategoryName, state.Catalog)
		if id == nil {
			log.Warn().
				Str("category", ct.CategoryName).
				Str("description", ct.Description).
				Msg("Category not in catalog and no Other category; storing without category")
		}
		state.Persistable = append(state.Persistable, &domain.PersistableTransaction{
			CategorizedTransaction: ct,
			UserID:                 state.UserID,
			FileSource:             state.Filename,
			CategoryID:             id,
		})
	}
	return nil
}

// Step 4: PersistStep writes all transactions in a single store call.
type PersistStep struct {
	Transactions store.TransactionRepository
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Transactions.InsertTransactions(ctx, state.Persistable); err != nil {
		return fmt.Errorf("PersistStep: inserting %d transactions: %w", len(state.Persistable), err)
	}
	return nil
}

// Step 5: SummarizeStep builds the upload summary.
type SummarizeStep struct{}

func (s *SummarizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Summary = buildSummary(state.Categorized)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially until one fails or marks the state done.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Done {
			return nil
		}
	}
	return nil
}

// NewUploadPipeline creates the standard five-step upload pipeline.
func NewUploadPipeline(ext TransactionExtractor, cat TransactionCategorizer, txs store.TransactionRepository) *Pipeline {
	return NewPipeline(
		&ExtractStep{Extractor: ext},
		&CategorizeStep{Categorizer: cat},
		&ResolveCategoriesStep{},
		&PersistStep{Transactions: txs},
		&SummarizeStep{},
	)
}
