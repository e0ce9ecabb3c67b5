package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/budget-companion/internal/store"
)

// NotionService defines the interface for interacting with Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	// DeletePage archives a page.
	DeletePage(ctx context.Context, pageID string) error
}

// TransactionLister is the read side of the transaction store the sync needs.
type TransactionLister interface {
	ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error)
}
