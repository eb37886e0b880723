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

// TransactionRepository owns the borrow/return state machine persistence. Every
// operation that both checks and mutates exemplar status runs inside one database
// transaction: availability is re-verified with a status-guarded UPDATE so two
// concurrent borrows cannot claim the same exemplar.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs the repository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, student_id, officer_id, officer_name, officer_title, type, borrow_date, due_date,
        return_date, status, receipt_number, barcode, total_fine, payment_status, branch_id, notes, created_at, updated_at`

// BorrowParams carries everything needed to open a borrow transaction.
type BorrowParams struct {
	StudentID     string
	ItemCodes     []string
	DueDate       *time.Time
	OfficerID     *string
	OfficerName   string
	OfficerTitle  string
	BranchID      string
	Notes         string
	ReceiptNumber string
}

// Borrow atomically resolves each scan code to an available exemplar, marks it
// borrowed, and opens the transaction with one item row per exemplar. A code is first
// tried as a unique code, then as a book id whose first available exemplar is taken.
// The whole batch commits or none of it does.
func (r *TransactionRepository) Borrow(ctx context.Context, params BorrowParams) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin borrow: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	itemIDs := make([]string, 0, len(params.ItemCodes))
	for _, code := range params.ItemCodes {
		itemID, err := resolveItemForBorrow(ctx, tx, code)
		if err != nil {
			return nil, err
		}
		// Guarded transition: zero rows means another borrow claimed it between
		// resolution and update, so the whole batch aborts.
		res, err := tx.ExecContext(ctx,
			`UPDATE items SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
			itemID, models.ItemStatusBorrowed, now, models.ItemStatusAvailable)
		if err != nil {
			return nil, fmt.Errorf("mark item borrowed: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return nil, fmt.Errorf("%w: %s", ErrItemUnavailable, code)
		}
		itemIDs = append(itemIDs, itemID)
	}

	transaction := &models.Transaction{
		ID:            uuid.NewString(),
		StudentID:     params.StudentID,
		OfficerID:     params.OfficerID,
		OfficerName:   params.OfficerName,
		OfficerTitle:  params.OfficerTitle,
		Type:          "borrow",
		BorrowDate:    now,
		DueDate:       params.DueDate,
		Status:        models.TransactionOngoing,
		ReceiptNumber: params.ReceiptNumber,
		Barcode:       params.ReceiptNumber,
		BranchID:      params.BranchID,
		Notes:         params.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	const txQuery = `INSERT INTO transactions (id, student_id, officer_id, officer_name, officer_title, type, borrow_date, due_date,
        return_date, status, receipt_number, barcode, total_fine, payment_status, branch_id, notes, created_at, updated_at)
        VALUES (:id, :student_id, :officer_id, :officer_name, :officer_title, :type, :borrow_date, :due_date,
        :return_date, :status, :receipt_number, :barcode, :total_fine, :payment_status, :branch_id, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, txQuery, transaction); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	const itemQuery = `INSERT INTO transaction_items (id, transaction_id, item_id, condition, fine, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, '', $5, $5)`
	for _, itemID := range itemIDs {
		if _, err := tx.ExecContext(ctx, itemQuery, uuid.NewString(), transaction.ID, itemID, models.ConditionGood, now); err != nil {
			return nil, fmt.Errorf("create transaction item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit borrow: %w", err)
	}
	commit = true
	return transaction, nil
}

// resolveItemForBorrow locks the exemplar a scan code refers to. Codes are tried as a
// unique code first, then as a book id.
func resolveItemForBorrow(ctx context.Context, tx *sqlx.Tx, code string) (string, error) {
	var itemID string
	err := tx.GetContext(ctx, &itemID,
		`SELECT id FROM items WHERE unique_code = $1 FOR UPDATE`, code)
	if err == nil {
		return itemID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("resolve item code: %w", err)
	}

	err = tx.GetContext(ctx, &itemID,
		`SELECT id FROM items WHERE book_id = $1 AND status = $2 ORDER BY created_at LIMIT 1 FOR UPDATE`,
		code, models.ItemStatusAvailable)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrItemUnavailable, code)
	}
	if err != nil {
		return "", fmt.Errorf("resolve book code: %w", err)
	}
	return itemID, nil
}

// ReturnItemParams describes one returned exemplar within a batch.
type ReturnItemParams struct {
	ItemID    string
	Condition models.ReturnCondition
	Fine      int64
	Notes     string
}

// ReturnParams covers one return call against a transaction.
type ReturnParams struct {
	TransactionID string
	Items         []ReturnItemParams
	PaymentStatus models.PaymentStatus
	OfficerName   string
	OfficerTitle  string
}

// Return applies a return batch: stamps each exemplar's post-return status, records
// condition/fine on the covered transaction items, and recomputes the transaction
// status. Fails with ErrTransactionClosed when the transaction is no longer open and
// sql.ErrNoRows when the transaction or a covered item is missing.
func (r *TransactionRepository) Return(ctx context.Context, params ReturnParams) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin return: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var transaction models.Transaction
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1 FOR UPDATE`, transactionColumns)
	if err := tx.GetContext(ctx, &transaction, query, params.TransactionID); err != nil {
		return nil, err
	}
	if !transaction.Status.CanReturn() {
		return nil, ErrTransactionClosed
	}

	now := time.Now().UTC()
	hasProblem := false
	var batchFine int64

	for _, ret := range params.Items {
		var txItemID string
		err := tx.GetContext(ctx, &txItemID,
			`SELECT id FROM transaction_items WHERE transaction_id = $1 AND item_id = $2`,
			params.TransactionID, ret.ItemID)
		if err != nil {
			return nil, err
		}

		fine := ret.Fine
		if ret.Condition.Problem() {
			hasProblem = true
			batchFine += fine
		} else {
			// Good returns never carry a fine.
			fine = 0
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET status = $2, updated_at = $3 WHERE id = $1`,
			ret.ItemID, ret.Condition.ItemStatus(), now); err != nil {
			return nil, fmt.Errorf("update returned item: %w", err)
		}

		var paidAt *time.Time
		if params.PaymentStatus == models.PaymentPaid {
			paidAt = &now
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transaction_items SET condition = $2, fine = $3, notes = $4, payment_status = $5, returned_at = $6, paid_at = $7, updated_at = $6 WHERE id = $1`,
			txItemID, ret.Condition, fine, ret.Notes, params.PaymentStatus, now, paidAt); err != nil {
			return nil, fmt.Errorf("update transaction item: %w", err)
		}
	}

	var outstanding int
	if err := tx.GetContext(ctx, &outstanding,
		`SELECT COUNT(*) FROM transaction_items WHERE transaction_id = $1 AND returned_at IS NULL`,
		params.TransactionID); err != nil {
		return nil, fmt.Errorf("count outstanding items: %w", err)
	}

	newStatus := models.DeriveReturnStatus(outstanding, hasProblem, params.PaymentStatus)

	transaction.Status = newStatus
	transaction.ReturnDate = &now
	transaction.TotalFine += batchFine
	transaction.PaymentStatus = &params.PaymentStatus
	transaction.UpdatedAt = now
	if params.OfficerName != "" {
		transaction.OfficerName = params.OfficerName
	}
	if params.OfficerTitle != "" {
		transaction.OfficerTitle = params.OfficerTitle
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $2, return_date = $3, total_fine = $4, payment_status = $5, officer_name = $6, officer_title = $7, updated_at = $3 WHERE id = $1`,
		transaction.ID, transaction.Status, now, transaction.TotalFine, transaction.PaymentStatus, transaction.OfficerName, transaction.OfficerTitle); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return: %w", err)
	}
	commit = true
	return &transaction, nil
}

// ResolvePending settles every pending problem item of a transaction in status
// has_problem_pending. When action is "replaced" the affected exemplars are put back
// in circulation. Fails with ErrTransactionNotPending otherwise.
func (r *TransactionRepository) ResolvePending(ctx context.Context, transactionID string, action models.ResolveAction) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve pending: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var transaction models.Transaction
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1 FOR UPDATE`, transactionColumns)
	if err := tx.GetContext(ctx, &transaction, query, transactionID); err != nil {
		return nil, err
	}
	if transaction.Status != models.TransactionHasProblemPending {
		return nil, ErrTransactionNotPending
	}

	var pending []models.TransactionItem
	const pendingQuery = `SELECT id, transaction_id, item_id, condition, fine, notes, payment_status, returned_at, paid_at,
        resolved, resolved_at, resolved_action, created_at, updated_at
        FROM transaction_items
        WHERE transaction_id = $1 AND payment_status = $2 AND condition IN ($3, $4)`
	if err := tx.SelectContext(ctx, &pending, pendingQuery, transactionID,
		models.PaymentPending, models.ConditionDamaged, models.ConditionLost); err != nil {
		return nil, fmt.Errorf("load pending items: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range pending {
		if action == models.ResolveReplaced {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET status = $2, updated_at = $3 WHERE id = $1`,
				item.ItemID, models.ItemStatusAvailable, now); err != nil {
				return nil, fmt.Errorf("restore replaced item: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transaction_items SET payment_status = $2, paid_at = $3, resolved = true, resolved_at = $3, resolved_action = $4, updated_at = $3 WHERE id = $1`,
			item.ID, models.PaymentPaid, now, action); err != nil {
			return nil, fmt.Errorf("settle transaction item: %w", err)
		}
	}

	paid := models.PaymentPaid
	transaction.Status = models.TransactionHasProblemResolved
	transaction.PaymentStatus = &paid
	transaction.UpdatedAt = now
	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $2, payment_status = $3, updated_at = $4 WHERE id = $1`,
		transactionID, transaction.Status, paid, now); err != nil {
		return nil, fmt.Errorf("resolve transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve pending: %w", err)
	}
	commit = true
	return &transaction, nil
}

// GetByID fetches a transaction with student context.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.TransactionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.nis AS student_nis, s.class AS student_class
        FROM transactions t LEFT JOIN students s ON s.id = t.student_id WHERE t.id = $1`, prefixedTransactionColumns())
	var detail models.TransactionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetByReceipt fetches a transaction by its human-facing receipt number.
func (r *TransactionRepository) GetByReceipt(ctx context.Context, receiptNumber string) (*models.TransactionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.nis AS student_nis, s.class AS student_class
        FROM transactions t LEFT JOIN students s ON s.id = t.student_id WHERE t.receipt_number = $1 LIMIT 1`, prefixedTransactionColumns())
	var detail models.TransactionDetail
	if err := r.db.GetContext(ctx, &detail, query, receiptNumber); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns transactions matching the filter, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s, s.name AS student_name, s.nis AS student_nis, s.class AS student_class
        FROM transactions t LEFT JOIN students s ON s.id = t.student_id`, prefixedTransactionColumns()))

	conditions := make([]string, 0, 2)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("t.student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY t.borrow_date DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var transactions []models.TransactionDetail
	if err := r.db.SelectContext(ctx, &transactions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

// SearchByStudent returns ongoing transactions for students whose name or NIS matches
// the query.
func (r *TransactionRepository) SearchByStudent(ctx context.Context, q string, limit int) ([]models.TransactionDetail, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s, s.name AS student_name, s.nis AS student_nis, s.class AS student_class
        FROM transactions t JOIN students s ON s.id = t.student_id
        WHERE t.status = $1 AND (LOWER(s.name) LIKE $2 OR LOWER(s.nis) LIKE $2)
        ORDER BY t.borrow_date DESC LIMIT %d`, prefixedTransactionColumns(), limit)
	var transactions []models.TransactionDetail
	if err := r.db.SelectContext(ctx, &transactions, query,
		models.TransactionOngoing, "%"+strings.ToLower(q)+"%"); err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	return transactions, nil
}

// ListItems returns the items of a transaction with exemplar and book context.
func (r *TransactionRepository) ListItems(ctx context.Context, transactionID string) ([]models.TransactionItemDetail, error) {
	const query = `SELECT ti.id, ti.transaction_id, ti.item_id, ti.condition, ti.fine, ti.notes, ti.payment_status,
        ti.returned_at, ti.paid_at, ti.resolved, ti.resolved_at, ti.resolved_action, ti.created_at, ti.updated_at,
        i.unique_code, i.status AS item_status, i.book_id, b.title AS book_title
        FROM transaction_items ti
        LEFT JOIN items i ON i.id = ti.item_id
        LEFT JOIN books b ON b.id = i.book_id
        WHERE ti.transaction_id = $1
        ORDER BY ti.created_at`
	var items []models.TransactionItemDetail
	if err := r.db.SelectContext(ctx, &items, query, transactionID); err != nil {
		return nil, fmt.Errorf("list transaction items: %w", err)
	}
	return items, nil
}

func prefixedTransactionColumns() string {
	cols := strings.Split(transactionColumns, ",")
	for i, col := range cols {
		cols[i] = "t." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
