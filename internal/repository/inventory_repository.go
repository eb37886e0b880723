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

// InventoryRepository manages consumable stock. The stock counter and its movement log
// are written together in one database transaction so the counter always equals the
// signed sum of its log entries.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository constructs an InventoryRepository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const inventoryColumns = `id, name, category, unit, stock, min_stock, image_url, branch_id, created_at, updated_at`

// List returns inventory items, optionally filtered by category or name fragment.
func (r *InventoryRepository) List(ctx context.Context, category, search string) ([]models.InventoryItem, error) {
	baseQuery := `FROM inventory_items WHERE 1=1`
	var conditions []string
	var args []interface{}

	if category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, category)
	}
	if search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY name", inventoryColumns, baseQuery)
	var items []models.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// FindByID fetches one inventory item.
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	query := fmt.Sprintf("SELECT %s FROM inventory_items WHERE id = $1", inventoryColumns)
	var item models.InventoryItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts a new inventory item with its opening stock. A non-zero opening
// stock is recorded as an initial inbound log entry.
func (r *InventoryRepository) Create(ctx context.Context, item *models.InventoryItem, byUserID *string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create inventory: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	const query = `INSERT INTO inventory_items (id, name, category, unit, stock, min_stock, image_url, branch_id, created_at, updated_at)
        VALUES (:id, :name, :category, :unit, :stock, :min_stock, :image_url, :branch_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create inventory item: %w", err)
	}

	if item.Stock > 0 {
		if err := insertInventoryLog(ctx, tx, &models.InventoryLog{
			InventoryID: item.ID,
			Type:        models.InventoryLogIn,
			Quantity:    item.Stock,
			ByUserID:    byUserID,
			Notes:       "initial stock",
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create inventory: %w", err)
	}
	commit = true
	return nil
}

// Update persists descriptive fields of an inventory item. Stock is never touched
// here; it only moves through Move.
func (r *InventoryRepository) Update(ctx context.Context, item *models.InventoryItem) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE inventory_items SET name = :name, category = :category, unit = :unit, min_stock = :min_stock,
        image_url = :image_url, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an inventory item together with its movement log.
func (r *InventoryRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete inventory: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_logs WHERE inventory_id = $1`, id); err != nil {
		return fmt.Errorf("delete inventory logs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete inventory: %w", err)
	}
	commit = true
	return nil
}

// Move applies a stock movement and appends the matching log entry atomically. The
// item row is locked first so concurrent movements serialize; outbound movements that
// would drive stock negative fail with ErrInsufficientStock.
func (r *InventoryRepository) Move(ctx context.Context, log *models.InventoryLog) (*models.InventoryItem, error) {
	if log.Quantity <= 0 {
		return nil, fmt.Errorf("movement quantity must be positive")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin inventory move: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var item models.InventoryItem
	query := fmt.Sprintf("SELECT %s FROM inventory_items WHERE id = $1 FOR UPDATE", inventoryColumns)
	if err := tx.GetContext(ctx, &item, query, log.InventoryID); err != nil {
		return nil, err
	}

	delta := log.Quantity
	if log.Type == models.InventoryLogOut {
		if item.Stock < log.Quantity {
			return nil, fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, item.Stock, log.Quantity)
		}
		delta = -log.Quantity
	}

	now := time.Now().UTC()
	if err := tx.GetContext(ctx, &item.Stock,
		`UPDATE inventory_items SET stock = stock + $2, updated_at = $3 WHERE id = $1 RETURNING stock`,
		log.InventoryID, delta, now); err != nil {
		return nil, fmt.Errorf("apply inventory movement: %w", err)
	}
	item.UpdatedAt = now

	if err := insertInventoryLog(ctx, tx, log); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit inventory move: %w", err)
	}
	commit = true
	return &item, nil
}

// ListLogs returns the movement history of one item, newest first.
func (r *InventoryRepository) ListLogs(ctx context.Context, inventoryID string, limit int) ([]models.InventoryLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, inventory_id, type, quantity, by_user_id, student_id, notes, created_at
        FROM inventory_logs WHERE inventory_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var logs []models.InventoryLog
	if err := r.db.SelectContext(ctx, &logs, query, inventoryID); err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	return logs, nil
}

func insertInventoryLog(ctx context.Context, tx *sqlx.Tx, log *models.InventoryLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO inventory_logs (id, inventory_id, type, quantity, by_user_id, student_id, notes, created_at)
        VALUES (:id, :inventory_id, :type, :quantity, :by_user_id, :student_id, :notes, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("append inventory log: %w", err)
	}
	return nil
}
