// Package bigquery is the warehouse storage backend.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/store"
)

// Repository implements store.Repository on BigQuery. It holds a shared
// client for all operations.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	newID     func() string
}

var _ store.Repository = (*Repository)(nil)

// NewRepository creates a Repository for the given project and dataset.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		newID:     uuid.NewString,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) *bigquery.Table {
	return r.client.DatasetInProject(r.projectID, r.datasetID).Table(name)
}

// EnsureTables creates the categories and transactions tables when missing.
func (r *Repository) EnsureTables(ctx context.Context) error {
	tables := []struct {
		name string
		row  interface{}
	}{
		{categoriesTable, CategoryRow{}},
		{transactionsTable, TransactionRow{}},
	}

	for _, t := range tables {
		schema, err := bigquery.InferSchema(t.row)
		if err != nil {
			return fmt.Errorf("EnsureTables: infer schema for %s: %w", t.name, err)
		}

		err = r.table(t.name).Create(ctx, &bigquery.TableMetadata{Schema: schema})
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureTables: create %s: %w", t.name, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// EnsureDefaultCategories implements store.Repository.
func (r *Repository) EnsureDefaultCategories(ctx context.Context, userID string) (int, error) {
	existing, err := r.ListCategories(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("EnsureDefaultCategories: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([]*CategoryRow, 0, len(store.DefaultCategories))
	for i, c := range store.DefaultCategories {
		rows = append(rows, &CategoryRow{
			CategoryID:  int64(i + 1),
			UserID:      userID,
			Name:        c.Name,
			Color:       c.Color,
			BudgetLimit: c.BudgetLimit,
			CreatedTS:   now,
		})
	}

	if err := r.table(categoriesTable).Inserter().Put(ctx, rows); err != nil {
		return 0, fmt.Errorf("EnsureDefaultCategories: inserting rows: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("user_id", userID).Int("categories", len(rows)).Msg("Seeded default categories")
	return len(rows), nil
}

// ListCategories implements store.CategoryRepository.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT category_id, user_id, name, color, budget_limit, is_custom, created_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY category_id
	`, r.qualified(categoriesTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var out []domain.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		out = append(out, row.toCategory())
	}
	return out, nil
}

// InsertTransactions implements store.TransactionRepository with a single
// streaming insert.
func (r *Repository) InsertTransactions(ctx context.Context, txs []*domain.PersistableTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = toTransactionRow(r.newID(), tx, now)
	}

	if err := r.table(transactionsTable).Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	for i, tx := range txs {
		tx.ID = rows[i].TransactionID
	}
	return nil
}

// ListTransactions implements store.TransactionRepository.
func (r *Repository) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]store.TransactionRecord, error) {
	sql, params := r.listQuery(f)
	q := r.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var out []store.TransactionRecord
	for {
		var row listRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (r *Repository) qualified(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, table)
}

func (r *Repository) listQuery(f store.TransactionFilter) (string, []bigquery.QueryParameter) {
	where := []string{"t.user_id = @user_id"}
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: f.UserID},
		{Name: "limit", Value: f.EffectiveLimit()},
	}
	if f.NeedsReview != nil {
		where = append(where, "t.needs_review = @needs_review")
		params = append(params, bigquery.QueryParameter{Name: "needs_review", Value: *f.NeedsReview})
	}

	sql := fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.transaction_date,
			t.amount,
			t.description,
			t.category_id,
			c.name AS category_name,
			t.confidence_score,
			t.needs_review,
			t.file_source
		FROM %s t
		LEFT JOIN %s c
		  ON c.category_id = t.category_id AND c.user_id = t.user_id
		WHERE %s
		ORDER BY t.transaction_date DESC, t.created_ts DESC
		LIMIT @limit
	`, r.qualified(transactionsTable), r.qualified(categoriesTable), strings.Join(where, " AND "))

	return sql, params
}
