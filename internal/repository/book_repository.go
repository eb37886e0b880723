package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// BookRepository manages persistence for the catalog: books and the exemplars they
// own. All total_copies mutations funnel through adjustTotalCopies so the counter
// cannot drift between call sites.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

const bookColumns = `id, title, author, category, year, publisher, cover_url, total_copies, qr_code_url, location, created_at, updated_at`

// List returns books matching the provided filters.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	base := "FROM books"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(author) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"title":      "title",
		"author":     "author",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", bookColumns, base, column, order, size, offset)

	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// Search returns up to limit books whose title or author contains the query.
func (r *BookRepository) Search(ctx context.Context, q string, limit int) ([]models.Book, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT %s FROM books WHERE LOWER(title) LIKE $1 OR LOWER(author) LIKE $1 ORDER BY title LIMIT %d", bookColumns, limit)
	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, "%"+strings.ToLower(q)+"%"); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

// FindByID fetches a book by id.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*models.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1", bookColumns)
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByTitle fetches a book by its exact title; used for dedup-on-create.
func (r *BookRepository) FindByTitle(ctx context.Context, title string) (*models.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE title = $1 LIMIT 1", bookColumns)
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, title); err != nil {
		return nil, err
	}
	return &book, nil
}

// Create inserts a new book together with its initial exemplars in one atomic unit.
func (r *BookRepository) Create(ctx context.Context, book *models.Book, items []models.Item) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now
	book.TotalCopies = len(items)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create book: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO books (id, title, author, category, year, publisher, cover_url, total_copies, qr_code_url, location, created_at, updated_at)
        VALUES (:id, :title, :author, :category, :year, :publisher, :cover_url, :total_copies, :qr_code_url, :location, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	if err := insertItems(ctx, tx, book.ID, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create book: %w", err)
	}
	commit = true
	return nil
}

// Update modifies mutable book fields.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	book.UpdatedAt = time.Now().UTC()
	const query = `UPDATE books SET title = :title, author = :author, category = :category, year = :year,
        publisher = :publisher, cover_url = :cover_url, location = :location, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// UpdateQRCodeURL stores the generated QR code location for a book.
func (r *BookRepository) UpdateQRCodeURL(ctx context.Context, id, url string) error {
	const query = `UPDATE books SET qr_code_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update book qr url: %w", err)
	}
	return nil
}

// DeleteCascade removes a book and every exemplar it owns. Returns the number of
// deleted items.
func (r *BookRepository) DeleteCascade(ctx context.Context, id string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete book: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE book_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete book items: %w", err)
	}
	deleted, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete book: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return 0, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete book: %w", err)
	}
	commit = true
	return int(deleted), nil
}

// AddCopies inserts new exemplars for an existing book and bumps the copy counter.
// Returns the new total.
func (r *BookRepository) AddCopies(ctx context.Context, bookID string, items []models.Item) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add copies: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if err := insertItems(ctx, tx, bookID, items); err != nil {
		return 0, err
	}

	total, err := adjustTotalCopies(ctx, tx, bookID, len(items))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add copies: %w", err)
	}
	commit = true
	return total, nil
}

// ReduceCopies retires up to quantity available exemplars of the book, stamping them
// with the given status, and decrements the copy counter by the requested quantity.
// Fails with ErrInsufficientStock when fewer than quantity exemplars are available;
// the transaction rolls back leaving all state untouched.
func (r *BookRepository) ReduceCopies(ctx context.Context, bookID string, quantity int, status models.ItemStatus, notes string) ([]string, int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin reduce copies: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var ids []string
	const selectQuery = `SELECT id FROM items WHERE book_id = $1 AND status = $2 ORDER BY created_at LIMIT $3 FOR UPDATE`
	if err := tx.SelectContext(ctx, &ids, selectQuery, bookID, models.ItemStatusAvailable, quantity); err != nil {
		return nil, 0, fmt.Errorf("select available items: %w", err)
	}
	if len(ids) < quantity {
		return nil, 0, ErrInsufficientStock
	}

	now := time.Now().UTC()
	updateQuery, args, err := sqlx.In(`UPDATE items SET status = ?, notes = ?, updated_at = ? WHERE id IN (?)`, status, notes, now, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("build item update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(updateQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("retire items: %w", err)
	}

	total, err := adjustTotalCopies(ctx, tx, bookID, -quantity)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit reduce copies: %w", err)
	}
	commit = true
	return ids, total, nil
}

// insertItems persists a batch of exemplars inside an open transaction.
func insertItems(ctx context.Context, tx *sqlx.Tx, bookID string, items []models.Item) error {
	now := time.Now().UTC()
	const query = `INSERT INTO items (id, book_id, unique_code, status, location, branch_id, notes, created_at, updated_at)
        VALUES (:id, :book_id, :unique_code, :status, :location, :branch_id, :notes, :created_at, :updated_at)`
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.BookID = bookID
		if item.Status == "" {
			item.Status = models.ItemStatusAvailable
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		item.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
			return fmt.Errorf("insert item %s: %w", item.UniqueCode, err)
		}
	}
	return nil
}

// adjustTotalCopies is the single mutation path for the maintained copy counter.
func adjustTotalCopies(ctx context.Context, tx *sqlx.Tx, bookID string, delta int) (int, error) {
	var total int
	const query = `UPDATE books SET total_copies = total_copies + $2, updated_at = $3 WHERE id = $1 RETURNING total_copies`
	if err := tx.GetContext(ctx, &total, query, bookID, delta, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("adjust total copies: %w", err)
	}
	return total, nil
}
