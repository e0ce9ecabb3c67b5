// Package sqlite is the default storage backend, a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/logger"
	"github.com/dvloznov/budget-companion/internal/store"
)

// Repository implements store.Repository on SQLite.
type Repository struct {
	db    *sql.DB
	newID func() string
}

var _ store.Repository = (*Repository)(nil)

// NewRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("NewRepository: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY
	// between the API and in-process workers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewRepository: ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewRepository: %w", err)
	}

	return &Repository{db: db, newID: uuid.NewString}, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureDefaultCategories seeds store.DefaultCategories for userID when the
// tenant has no categories yet. It returns the number of rows inserted.
func (r *Repository) EnsureDefaultCategories(ctx context.Context, userID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("EnsureDefaultCategories: begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("EnsureDefaultCategories: count: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for _, c := range store.DefaultCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (user_id, name, color, budget_limit, is_custom) VALUES (?, ?, ?, ?, ?)`,
			userID, c.Name, c.Color, c.BudgetLimit, false,
		); err != nil {
			return 0, fmt.Errorf("EnsureDefaultCategories: insert %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("EnsureDefaultCategories: commit: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("user_id", userID).Int("categories", len(store.DefaultCategories)).Msg("Seeded default categories")
	return len(store.DefaultCategories), nil
}

// ListCategories implements store.CategoryRepository.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color, budget_limit, is_custom FROM categories WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.BudgetLimit, &c.IsCustom); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: iterate: %w", err)
	}
	return out, nil
}

// InsertTransactions implements store.TransactionRepository. All rows are
// written in one database transaction.
func (r *Repository) InsertTransactions(ctx context.Context, txs []*domain.PersistableTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertTransactions: begin: %w", err)
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, user_id, date, amount, description, account_info, category_id,
			confidence_score, reasoning, file_source, needs_review, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("InsertTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	now := domain.FormatDate(time.Now().UTC())
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = r.newID()

		var categoryID sql.NullInt64
		if tx.CategoryID != nil {
			categoryID = sql.NullInt64{Int64: *tx.CategoryID, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			ids[i], tx.UserID, domain.FormatDate(tx.Date), tx.Amount, tx.Description, tx.AccountInfo, categoryID,
			tx.ConfidenceScore, tx.Reasoning, tx.FileSource, tx.NeedsReview, now, now,
		); err != nil {
			return fmt.Errorf("InsertTransactions: insert %d: %w", i, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("InsertTransactions: commit: %w", err)
	}

	for i, tx := range txs {
		tx.ID = ids[i]
	}
	return nil
}

// ListTransactions implements store.TransactionRepository.
func (r *Repository) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]store.TransactionRecord, error) {
	var (
		where = []string{"t.user_id = ?"}
		args  = []interface{}{f.UserID}
	)
	if f.NeedsReview != nil {
		where = append(where, "t.needs_review = ?")
		args = append(args, *f.NeedsReview)
	}
	args = append(args, f.EffectiveLimit())

	query := `
		SELECT t.id, t.date, t.amount, t.description, t.category_id, c.name,
		       t.confidence_score, t.needs_review, t.file_source
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.date DESC, t.rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []store.TransactionRecord
	for rows.Next() {
		var (
			rec        store.TransactionRecord
			date       string
			categoryID sql.NullInt64
			category   sql.NullString
		)
		if err := rows.Scan(&rec.ID, &date, &rec.Amount, &rec.Description, &categoryID, &category,
			&rec.ConfidenceScore, &rec.NeedsReview, &rec.FileSource); err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}

		rec.Date, err = time.Parse(domain.DateTimeLayout, date)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: parse date %q: %w", date, err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			rec.CategoryID = &id
		}
		if category.Valid {
			name := category.String
			rec.CategoryName = &name
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: iterate: %w", err)
	}
	return out, nil
}
