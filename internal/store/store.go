// Package store defines the persistence contracts used by the pipeline and
// the HTTP layer. Implementations live in the sqlite and bigquery packages.
package store

import (
	"context"
	"time"

	"github.com/dvloznov/budget-companion/internal/domain"
)

const (
	// DefaultListLimit caps transaction listings when no limit is given.
	DefaultListLimit = 100

	// ReviewQueueLimit caps review-queue reads.
	ReviewQueueLimit = 1000
)

// CategoryRepository reads a tenant's category catalog.
type CategoryRepository interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
}

// TransactionRepository writes and queries categorized transactions.
type TransactionRepository interface {
	// InsertTransactions stores txs in one batch and sets each ID.
	InsertTransactions(ctx context.Context, txs []*domain.PersistableTransaction) error

	// ListTransactions returns transactions newest first.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]TransactionRecord, error)
}

// Repository is a complete storage backend.
type Repository interface {
	CategoryRepository
	TransactionRepository

	// EnsureDefaultCategories seeds DefaultCategories for a tenant without
	// categories and returns the number of categories inserted.
	EnsureDefaultCategories(ctx context.Context, userID string) (int, error)

	Close() error
}

// TransactionFilter selects transactions for listing.
type TransactionFilter struct {
	UserID      string
	NeedsReview *bool // nil means no filter
	Limit       int   // <= 0 means DefaultListLimit
}

// EffectiveLimit returns the limit to apply.
func (f TransactionFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// TransactionRecord is a stored transaction joined with its category name.
type TransactionRecord struct {
	ID              string
	Date            time.Time
	Amount          float64
	Description     string
	CategoryID      *int64
	CategoryName    *string
	ConfidenceScore float64
	NeedsReview     bool
	FileSource      string
}

// UncategorizedLabel is shown for records without a category.
const UncategorizedLabel = "Uncategorized"

// CategoryLabel returns the category name, or UncategorizedLabel.
func (r TransactionRecord) CategoryLabel() string {
	if r.CategoryName == nil {
		return UncategorizedLabel
	}
	return *r.CategoryName
}

// DefaultCategories is the catalog seeded for a new tenant.
var DefaultCategories = []domain.Category{
	{Name: "Groceries", Color: "#10B981"},
	{Name: "Dining", Color: "#F59E0B"},
	{Name: "Transportation", Color: "#3B82F6"},
	{Name: "Bills", Color: "#EF4444"},
	{Name: "Entertainment", Color: "#8B5CF6"},
	{Name: "Shopping", Color: "#EC4899"},
	{Name: "Healthcare", Color: "#06B6D4"},
	{Name: "Other", Color: "#6B7280"},
}
