package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// FoundBookRepository persists recovered exemplars. Recording a find parks the
// exemplar in status found in the same database transaction that creates the record.
type FoundBookRepository struct {
	db *sqlx.DB
}

// NewFoundBookRepository constructs a FoundBookRepository.
func NewFoundBookRepository(db *sqlx.DB) *FoundBookRepository {
	return &FoundBookRepository{db: db}
}

const foundBookColumns = `id, item_id, item_code, description, status, found_date, created_at, updated_at`

// Record resolves a scan code to an exemplar, parks it in status found, and opens a
// found-book record. The code is tried as a unique code first, then as a book id.
func (r *FoundBookRepository) Record(ctx context.Context, code, description string) (*models.FoundBook, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record found: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var itemID string
	err = tx.GetContext(ctx, &itemID, `SELECT id FROM items WHERE unique_code = $1 FOR UPDATE`, code)
	if err == sql.ErrNoRows {
		err = tx.GetContext(ctx, &itemID,
			`SELECT id FROM items WHERE book_id = $1 ORDER BY created_at LIMIT 1 FOR UPDATE`, code)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	found := &models.FoundBook{
		ID:          uuid.NewString(),
		ItemID:      itemID,
		ItemCode:    code,
		Description: description,
		Status:      models.FoundBookRecorded,
		FoundDate:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	const query = `INSERT INTO found_books (id, item_id, item_code, description, status, found_date, created_at, updated_at)
        VALUES (:id, :item_id, :item_code, :description, :status, :found_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, found); err != nil {
		return nil, fmt.Errorf("create found book: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET status = $2, updated_at = $3 WHERE id = $1`,
		itemID, models.ItemStatusFound, now); err != nil {
		return nil, fmt.Errorf("mark item found: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record found: %w", err)
	}
	commit = true
	return found, nil
}

// List returns found-book records, optionally filtered by status, newest first.
func (r *FoundBookRepository) List(ctx context.Context, status models.FoundBookStatus, limit int) ([]models.FoundBook, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM found_books`, foundBookColumns)
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY found_date DESC LIMIT %d", limit)

	var records []models.FoundBook
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list found books: %w", err)
	}
	return records, nil
}

// FindByID fetches one found-book record.
func (r *FoundBookRepository) FindByID(ctx context.Context, id string) (*models.FoundBook, error) {
	query := fmt.Sprintf(`SELECT %s FROM found_books WHERE id = $1`, foundBookColumns)
	var record models.FoundBook
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateStatus advances the found-book lifecycle. Closing the record puts the
// exemplar back in circulation.
func (r *FoundBookRepository) UpdateStatus(ctx context.Context, id string, status models.FoundBookStatus) (*models.FoundBook, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update found book: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var record models.FoundBook
	query := fmt.Sprintf(`SELECT %s FROM found_books WHERE id = $1 FOR UPDATE`, foundBookColumns)
	if err := tx.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record.Status = status
	record.UpdatedAt = now
	if _, err := tx.ExecContext(ctx,
		`UPDATE found_books SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, now); err != nil {
		return nil, fmt.Errorf("update found book: %w", err)
	}

	if status == models.FoundBookResolved || status == models.FoundBookReturnedToOwner {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
			record.ItemID, models.ItemStatusAvailable, now, models.ItemStatusFound); err != nil {
			return nil, fmt.Errorf("release found item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update found book: %w", err)
	}
	commit = true
	return &record, nil
}
