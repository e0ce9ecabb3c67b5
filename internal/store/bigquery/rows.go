package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/store"
)

const (
	categoriesTable   = "categories"
	transactionsTable = "transactions"
)

// CategoryRow is a row of the categories table.
type CategoryRow struct {
	CategoryID  int64     `bigquery:"category_id"`  // REQUIRED
	UserID      string    `bigquery:"user_id"`      // REQUIRED
	Name        string    `bigquery:"name"`         // REQUIRED
	Color       string    `bigquery:"color"`        // REQUIRED
	BudgetLimit float64   `bigquery:"budget_limit"` // REQUIRED
	IsCustom    bool      `bigquery:"is_custom"`    // REQUIRED
	CreatedTS   time.Time `bigquery:"created_ts"`   // REQUIRED
}

// TransactionRow is a row of the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionDate civil.DateTime `bigquery:"transaction_date"` // REQUIRED DATETIME
	Amount          *big.Rat       `bigquery:"amount"`           // REQUIRED NUMERIC
	Description     string         `bigquery:"description"`      // REQUIRED

	AccountInfo bigquery.NullString `bigquery:"account_info"` // NULLABLE
	CategoryID  bigquery.NullInt64  `bigquery:"category_id"`  // NULLABLE

	ConfidenceScore float64             `bigquery:"confidence_score"`
	Reasoning       bigquery.NullString `bigquery:"reasoning"`
	FileSource      string              `bigquery:"file_source"`
	NeedsReview     bool                `bigquery:"needs_review"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
	UpdatedTS time.Time `bigquery:"updated_ts"` // REQUIRED
}

// listRow is the shape of the transaction listing query.
type listRow struct {
	TransactionID   string              `bigquery:"transaction_id"`
	TransactionDate civil.DateTime      `bigquery:"transaction_date"`
	Amount          *big.Rat            `bigquery:"amount"`
	Description     string              `bigquery:"description"`
	CategoryID      bigquery.NullInt64  `bigquery:"category_id"`
	CategoryName    bigquery.NullString `bigquery:"category_name"`
	ConfidenceScore float64             `bigquery:"confidence_score"`
	NeedsReview     bool                `bigquery:"needs_review"`
	FileSource      string              `bigquery:"file_source"`
}

func toTransactionRow(id string, tx *domain.PersistableTransaction, now time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   id,
		UserID:          tx.UserID,
		TransactionDate: civil.DateTimeOf(tx.Date),
		Amount:          decimal.NewFromFloat(tx.Amount).Rat(),
		Description:     tx.Description,
		ConfidenceScore: tx.ConfidenceScore,
		FileSource:      tx.FileSource,
		NeedsReview:     tx.NeedsReview,
		CreatedTS:       now,
		UpdatedTS:       now,
	}
	if tx.AccountInfo != "" {
		row.AccountInfo = bigquery.NullString{StringVal: tx.AccountInfo, Valid: true}
	}
	if tx.Reasoning != "" {
		row.Reasoning = bigquery.NullString{StringVal: tx.Reasoning, Valid: true}
	}
	if tx.CategoryID != nil {
		row.CategoryID = bigquery.NullInt64{Int64: *tx.CategoryID, Valid: true}
	}
	return row
}

func (r listRow) toRecord() store.TransactionRecord {
	rec := store.TransactionRecord{
		ID:              r.TransactionID,
		Date:            r.TransactionDate.In(time.UTC),
		Description:     r.Description,
		ConfidenceScore: r.ConfidenceScore,
		NeedsReview:     r.NeedsReview,
		FileSource:      r.FileSource,
	}
	if r.Amount != nil {
		rec.Amount, _ = r.Amount.Float64()
	}
	if r.CategoryID.Valid {
		id := r.CategoryID.Int64
		rec.CategoryID = &id
	}
	if r.CategoryName.Valid {
		name := r.CategoryName.StringVal
		rec.CategoryName = &name
	}
	return rec
}

func (r CategoryRow) toCategory() domain.Category {
	return domain.Category{
		ID:          r.CategoryID,
		Name:        r.Name,
		Color:       r.Color,
		BudgetLimit: r.BudgetLimit,
		IsCustom:    r.IsCustom,
	}
}
