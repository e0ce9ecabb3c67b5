package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budget-companion/internal/store"
)

type MockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePageFunc    func(ctx context.Context, pageID string) error
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return m.CreatePageFunc(ctx, databaseID, properties)
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return m.QueryDatabaseFunc(ctx, databaseID, filter)
}

func (m *MockNotionService) DeletePage(ctx context.Context, pageID string) error {
	return m.DeletePageFunc(ctx, pageID)
}

type MockTransactionLister struct {
	ListTransactionsFunc func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error)
}

func (m *MockTransactionLister) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
	return m.ListTransactionsFunc(ctx, filter)
}

func pageFor(pageID, txID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropTransactionID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: txID}},
			},
		},
	}
}

func reviewQueue(ids ...string) *MockTransactionLister {
	return &MockTransactionLister{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			var out []store.TransactionRecord
			for _, id := range ids {
				out = append(out, store.TransactionRecord{ID: id, Description: "tx " + id, NeedsReview: true})
			}
			return out, nil
		},
	}
}

func TestSyncReviewQueue_CreatesSkipsAndArchives(t *testing.T) {
	var created []string
	var archived []string
	svc := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{pageFor("p-a", "a"), pageFor("p-old", "resolved"), pageFor("p-blank", "")},
			}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			assert.Equal(t, "db-1", databaseID)
			created = append(created, extractTransactionID(notionapi.Page{Properties: properties}))
			return &notionapi.Page{ID: "new"}, nil
		},
		DeletePageFunc: func(ctx context.Context, pageID string) error {
			archived = append(archived, pageID)
			return nil
		},
	}

	res, err := SyncReviewQueue(context.Background(), reviewQueue("a", "b", "c"), svc, "db-1", "001", false)
	require.NoError(t, err)

	assert.Equal(t, Result{Created: 2, Skipped: 1, Archived: 2}, res)
	assert.Equal(t, []string{"b", "c"}, created)
	assert.Equal(t, []string{"p-old", "p-blank"}, archived)
}

func TestSyncReviewQueue_DryRunWritesNothing(t *testing.T) {
	svc := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageFor("p-old", "gone")}}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			t.Fatal("CreatePage called in dry run")
			return nil, nil
		},
		DeletePageFunc: func(ctx context.Context, pageID string) error {
			t.Fatal("DeletePage called in dry run")
			return nil
		},
	}

	res, err := SyncReviewQueue(context.Background(), reviewQueue("a"), svc, "db-1", "001", true)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Archived: 1}, res)
}

func TestSyncReviewQueue_FiltersReviewQueue(t *testing.T) {
	repo := &MockTransactionLister{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			assert.Equal(t, "001", filter.UserID)
			require.NotNil(t, filter.NeedsReview)
			assert.True(t, *filter.NeedsReview)
			assert.Equal(t, store.ReviewQueueLimit, filter.Limit)
			return nil, nil
		},
	}
	svc := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{}, nil
		},
	}

	res, err := SyncReviewQueue(context.Background(), repo, svc, "db-1", "001", false)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSyncReviewQueue_CountsPageFailures(t *testing.T) {
	svc := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{}, nil
		},
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			return nil, errors.New("rate limited")
		},
	}

	res, err := SyncReviewQueue(context.Background(), reviewQueue("a", "b"), svc, "db-1", "001", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Created)
}

func TestSyncReviewQueue_Errors(t *testing.T) {
	failingRepo := &MockTransactionLister{
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]store.TransactionRecord, error) {
			return nil, errors.New("db down")
		},
	}
	_, err := SyncReviewQueue(context.Background(), failingRepo, &MockNotionService{}, "db-1", "001", false)
	assert.ErrorContains(t, err, "db down")

	failingNotion := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("unauthorized")
		},
	}
	_, err = SyncReviewQueue(context.Background(), reviewQueue("a"), failingNotion, "db-1", "001", false)
	assert.ErrorContains(t, err, "unauthorized")
}

func TestQueryAllNotionPages_Paginates(t *testing.T) {
	var cursors []notionapi.Cursor
	svc := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, filter.StartCursor)
			if filter.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageFor("1", "a")}, HasMore: true, NextCursor: "next"}, nil
			}
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageFor("2", "b")}}, nil
		},
	}

	pages, err := queryAllNotionPages(context.Background(), svc, "db")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
}

func TestTransactionToNotionProperties(t *testing.T) {
	name := "Dining"
	tx := store.TransactionRecord{
		ID:              "tx-1",
		Date:            time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
		Amount:          -12.5,
		Description:     "CAFE",
		CategoryName:    &name,
		ConfidenceScore: 0.55,
		FileSource:      "july.csv",
	}

	props := TransactionToNotionProperties(tx)

	title := props[PropDescription].(notionapi.TitleProperty)
	assert.Equal(t, "CAFE", title.Title[0].Text.Content)
	assert.Equal(t, -12.5, props[PropAmount].(notionapi.NumberProperty).Number)
	assert.Equal(t, "Dining", props[PropCategory].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, 0.55, props[PropConfidence].(notionapi.NumberProperty).Number)
	assert.Equal(t, "tx-1", extractTransactionID(notionapi.Page{Properties: props}))
	assert.Contains(t, props, PropFileSource)

	tx.CategoryName = nil
	tx.FileSource = ""
	props = TransactionToNotionProperties(tx)
	assert.Equal(t, store.UncategorizedLabel, props[PropCategory].(notionapi.SelectProperty).Select.Name)
	assert.NotContains(t, props, PropFileSource)
}
