package domain

import (
	"fmt"
	"time"
)

const (
	// ReviewThreshold is the confidence below which a categorization is sent
	// to the review queue.
	ReviewThreshold = 0.7

	// OtherCategory is the catch-all category name used whenever the model
	// answer cannot be trusted.
	OtherCategory = "Other"

	// DateTimeLayout is the ISO-8601 local date-time layout used for
	// normalized transaction dates, e.g. "2025-07-02T00:00:00".
	DateTimeLayout = "2006-01-02T15:04:05"
)

// RawTransaction is one element of the extraction model's JSON array.
// Field values are kept as decoded so cleaning can decide what to accept.
type RawTransaction map[string]interface{}

// Transaction is a cleaned transaction: every field present and well-typed.
// Records that cannot satisfy this are dropped during extraction.
type Transaction struct {
	Date        time.Time // normalized from "date"
	Amount      float64   // from "amount" (credit = positive, debit = negative)
	Description string    // from "description", trimmed and non-empty
	AccountInfo string    // from "account_info", "" when absent
}

// FormatDate renders t in DateTimeLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// Category is one entry of a tenant's category catalog.
type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	BudgetLimit float64 `json:"budget_limit"`
	IsCustom    bool    `json:"is_custom"`
}

// CategoryNames returns the names of the catalog in order.
func CategoryNames(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}

// FallbackReason tags a categorization that was not taken verbatim from the
// model. The empty value means the model answer was accepted.
type FallbackReason string

const (
	FallbackNone              FallbackReason = ""
	FallbackTransportError    FallbackReason = "transport_error"
	FallbackMalformedResponse FallbackReason = "malformed_response"
	FallbackMissingFields     FallbackReason = "missing_fields"
	FallbackUnknownCategory   FallbackReason = "unknown_category"
	FallbackInvalidConfidence FallbackReason = "invalid_confidence"
)

// Categorization is the validated answer for a single transaction.
type Categorization struct {
	Category   string         `json:"category"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Fallback   FallbackReason `json:"-"`
}

// IsFallback reports whether any validation rule overrode the model answer.
func (c Categorization) IsFallback() bool {
	return c.Fallback != FallbackNone
}

// NeedsReview reports whether a confidence score requires manual review.
func NeedsReview(confidence float64) bool {
	return confidence < ReviewThreshold
}

// CategorizedTransaction is a cleaned transaction with its category assignment.
type CategorizedTransaction struct {
	Transaction

	CategoryName    string
	ConfidenceScore float64
	NeedsReview     bool
	Reasoning       string
	Fallback        FallbackReason
}

// NewCategorizedTransaction attaches c to tx and derives the review flag.
func NewCategorizedTransaction(tx Transaction, c Categorization) CategorizedTransaction {
	return CategorizedTransaction{
		Transaction:     tx,
		CategoryName:    c.Category,
		ConfidenceScore: c.Confidence,
		NeedsReview:     NeedsReview(c.Confidence),
		Reasoning:       c.Reasoning,
		Fallback:        c.Fallback,
	}
}

// PersistableTransaction is a categorized transaction with its category name
// resolved against the catalog. CategoryID is nil when nothing matched.
type PersistableTransaction struct {
	CategorizedTransaction

	ID         string // assigned by the store
	UserID     string
	FileSource string
	CategoryID *int64
}

func (p PersistableTransaction) String() string {
	id := "<nil>"
	if p.CategoryID != nil {
		id = fmt.Sprintf("%d", *p.CategoryID)
	}
	return fmt.Sprintf("%s %.2f %q -> %s (id=%s, confidence=%.2f)",
		FormatDate(p.Date), p.Amount, p.Description, p.CategoryName, id, p.ConfidenceScore)
}
