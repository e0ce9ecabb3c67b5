// Package categorizer assigns budget categories to transactions with one
// language-model call per transaction.
package categorizer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/llm"
	"github.com/dvloznov/budget-companion/internal/logger"
)

// Categorizer is safe for concurrent use.
type Categorizer struct {
	client      llm.Client
	concurrency int
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithConcurrency bounds the number of in-flight model calls during a batch.
// Values below 2 keep batches sequential.
func WithConcurrency(n int) Option {
	return func(c *Categorizer) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// New creates a Categorizer on top of client.
func New(client llm.Client, opts ...Option) *Categorizer {
	c := &Categorizer{client: client, concurrency: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CategorizeOne asks the model for the category of a single transaction.
// It never fails; unusable answers come back as tagged fallbacks.
func (c *Categorizer) CategorizeOne(ctx context.Context, description string, amount float64, categories []domain.Category) domain.Categorization {
	return c.categorize(ctx, description, amount, domain.CategoryNames(categories), NewCategoryValidator(categories))
}

func (c *Categorizer) categorize(ctx context.Context, description string, amount float64, names []string, v *CategoryValidator) domain.Categorization {
	log := logger.FromContext(ctx)

	raw, err := c.client.Complete(ctx, llm.Request{
		System:      systemInstruction,
		Prompt:      buildCategorizationPrompt(description, amount, names),
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("description", description).Msg("Categorization request failed")
		return Fallback(domain.FallbackTransportError)
	}

	result := v.Validate(raw)
	if result.IsFallback() {
		log.Warn().
			Str("description", description).
			Str("fallback", string(result.Fallback)).
			Str("raw_response", raw).
			Msg("Categorization answer not accepted as-is")
	}
	return result
}

// CategorizeBatch categorizes txs and returns one result per input, in input
// order. Amounts and dates are carried through unchanged.
func (c *Categorizer) CategorizeBatch(ctx context.Context, txs []domain.Transaction, categories []domain.Category) []domain.CategorizedTransaction {
	names := domain.CategoryNames(categories)
	v := NewCategoryValidator(categories)
	out := make([]domain.CategorizedTransaction, len(txs))

	if c.concurrency <= 1 || len(txs) < 2 {
		for i, tx := range txs {
			out[i] = domain.NewCategorizedTransaction(tx, c.categorize(ctx, tx.Description, tx.Amount, names, v))
		}
	} else {
		// Workers never return errors, so the group only bounds and joins.
		var g errgroup.Group
		g.SetLimit(c.concurrency)
		for i, tx := range txs {
			g.Go(func() error {
				out[i] = domain.NewCategorizedTransaction(tx, c.categorize(ctx, tx.Description, tx.Amount, names, v))
				return nil
			})
		}
		_ = g.Wait()
	}

	fallbacks, review := 0, 0
	for _, ct := range out {
		if ct.Fallback != domain.FallbackNone {
			fallbacks++
		}
		if ct.NeedsReview {
			review++
		}
	}
	log := logger.FromContext(ctx)
	log.Info().
		Int("transactions", len(out)).
		Int("needs_review", review).
		Int("fallbacks", fallbacks).
		Int("concurrency", c.concurrency).
		Msg("Categorization finished")

	return out
}
