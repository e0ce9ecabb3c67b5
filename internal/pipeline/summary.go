package pipeline

import (
	"fmt"

	"github.com/dvloznov/budget-companion/internal/domain"
)

// PreviewItem is one transaction echoed back to the uploader.
type PreviewItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`
}

// Summary is the outcome of one upload.
type Summary struct {
	Success               bool          `json:"success"`
	Message               string        `json:"message"`
	TransactionsProcessed int           `json:"transactions_processed"`
	NeedsReview           int           `json:"needs_review"`
	Transactions          []PreviewItem `json:"transactions,omitempty"`
}

func buildSummary(txs []domain.CategorizedTransaction) *Summary {
	s := &Summary{
		Success:               true,
		Message:               fmt.Sprintf("Successfully processed %d transactions", len(txs)),
		TransactionsProcessed: len(txs),
		Transactions:          make([]PreviewItem, 0, min(len(txs), PreviewLimit)),
	}

	for i, tx := range txs {
		if tx.NeedsReview {
			s.NeedsReview++
		}
		if i < PreviewLimit {
			s.Transactions = append(s.Transactions, PreviewItem{
				Description: tx.Description,
				Amount:      tx.Amount,
				Category:    tx.CategoryName,
				Confidence:  tx.ConfidenceScore,
				NeedsReview: tx.NeedsReview,
			})
		}
	}
	return s
}
