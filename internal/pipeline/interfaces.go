package pipeline

import (
	"context"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/extractor"
)

// TransactionExtractor turns file content into cleaned transactions.
type TransactionExtractor interface {
	ExtractDetailed(ctx context.Context, content, filename string) extractor.Result
}

// TransactionCategorizer assigns categories to a batch of transactions,
// returning one result per input in input order.
type TransactionCategorizer interface {
	CategorizeBatch(ctx context.Context, txs []domain.Transaction, categories []domain.Category) []domain.CategorizedTransaction
}
