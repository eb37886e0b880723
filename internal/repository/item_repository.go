package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// ItemRepository provides read/lookup access to exemplars. Status transitions driven
// by borrow/return live in TransactionRepository so they share the atomic unit.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository constructs an ItemRepository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemDetailColumns = `i.id, i.book_id, i.unique_code, i.status, i.location, i.branch_id, i.notes, i.created_at, i.updated_at,
        b.title AS book_title, b.author AS book_author`

// FindByCode fetches an exemplar by its immutable unique code.
func (r *ItemRepository) FindByCode(ctx context.Context, code string) (*models.ItemDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM items i LEFT JOIN books b ON b.id = i.book_id WHERE i.unique_code = $1`, itemDetailColumns)
	var item models.ItemDetail
	if err := r.db.GetContext(ctx, &item, query, code); err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByID fetches an exemplar by id.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (*models.ItemDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM items i LEFT JOIN books b ON b.id = i.book_id WHERE i.id = $1`, itemDetailColumns)
	var item models.ItemDetail
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByBook returns all exemplars belonging to a book.
func (r *ItemRepository) ListByBook(ctx context.Context, bookID string) ([]models.Item, error) {
	const query = `SELECT id, book_id, unique_code, status, location, branch_id, notes, created_at, updated_at
        FROM items WHERE book_id = $1 ORDER BY created_at`
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, bookID); err != nil {
		return nil, fmt.Errorf("list book items: %w", err)
	}
	return items, nil
}

// List returns up to limit exemplars, newest first.
func (r *ItemRepository) List(ctx context.Context, limit int) ([]models.ItemDetail, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM items i LEFT JOIN books b ON b.id = i.book_id ORDER BY i.created_at DESC LIMIT %d`, itemDetailColumns, limit)
	var items []models.ItemDetail
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// CountByStatus returns the number of exemplars per status for a book.
func (r *ItemRepository) CountByStatus(ctx context.Context, bookID string) (map[models.ItemStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM items WHERE book_id = $1 GROUP BY status`
	rows := []struct {
		Status models.ItemStatus `db:"status"`
		Count  int               `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, bookID); err != nil {
		return nil, fmt.Errorf("count items by status: %w", err)
	}
	counts := make(map[models.ItemStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateStatus stamps a new status on an exemplar.
func (r *ItemRepository) UpdateStatus(ctx context.Context, id string, status models.ItemStatus, notes string) error {
	const query = `UPDATE items SET status = $2, notes = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	return nil
}
