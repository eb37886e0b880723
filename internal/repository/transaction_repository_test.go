package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

func newTransactionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func transactionRows(status models.TransactionStatus, totalFine int64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "student_id", "officer_id", "officer_name", "officer_title", "type", "borrow_date", "due_date",
		"return_date", "status", "receipt_number", "barcode", "total_fine", "payment_status", "branch_id", "notes", "created_at", "updated_at",
	}).AddRow("tx-1", "student-1", nil, "Officer", "Petugas", "borrow", now, now.AddDate(0, 0, 7),
		nil, status, "TX-1", "TX-1", totalFine, nil, "pusat", "", now, now)
}

func TestTransactionRepositoryBorrow(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM items WHERE unique_code = $1 FOR UPDATE")).
		WithArgs("BOOK-1-1-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("item-1", models.ItemStatusBorrowed, sqlmock.AnyArg(), models.ItemStatusAvailable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transaction_items").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "item-1", models.ConditionGood, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.Borrow(context.Background(), BorrowParams{
		StudentID:     "student-1",
		ItemCodes:     []string{"BOOK-1-1-1"},
		ReceiptNumber: "TX-1",
		BranchID:      "pusat",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionOngoing, transaction.Status)
	assert.Equal(t, "TX-1", transaction.ReceiptNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryBorrowClaimedConcurrently(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM items WHERE unique_code = $1 FOR UPDATE")).
		WithArgs("BOOK-1-1-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("item-1", models.ItemStatusBorrowed, sqlmock.AnyArg(), models.ItemStatusAvailable).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Borrow(context.Background(), BorrowParams{
		StudentID:     "student-1",
		ItemCodes:     []string{"BOOK-1-1-1"},
		ReceiptNumber: "TX-1",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrItemUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryBorrowByBookID(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM items WHERE unique_code = $1 FOR UPDATE")).
		WithArgs("book-9").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM items WHERE book_id = $1 AND status = $2 ORDER BY created_at LIMIT 1 FOR UPDATE")).
		WithArgs("book-9", models.ItemStatusAvailable).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("item-7"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("item-7", models.ItemStatusBorrowed, sqlmock.AnyArg(), models.ItemStatusAvailable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transaction_items").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.Borrow(context.Background(), BorrowParams{
		StudentID:     "student-1",
		ItemCodes:     []string{"book-9"},
		ReceiptNumber: "TX-2",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionOngoing, transaction.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryReturnClosed(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("tx-1").
		WillReturnRows(transactionRows(models.TransactionCompleted, 0))
	mock.ExpectRollback()

	_, err := repo.Return(context.Background(), ReturnParams{
		TransactionID: "tx-1",
		Items:         []ReturnItemParams{{ItemID: "item-1", Condition: models.ConditionGood}},
		PaymentStatus: models.PaymentPaid,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransactionClosed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryReturnCompletes(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("tx-1").
		WillReturnRows(transactionRows(models.TransactionOngoing, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM transaction_items WHERE transaction_id = $1 AND item_id = $2")).
		WithArgs("tx-1", "item-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txitem-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("item-1", models.ItemStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transaction_items SET condition").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transaction_items WHERE transaction_id = $1 AND returned_at IS NULL")).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE transactions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.Return(context.Background(), ReturnParams{
		TransactionID: "tx-1",
		Items:         []ReturnItemParams{{ItemID: "item-1", Condition: models.ConditionGood, Fine: 5000}},
		PaymentStatus: models.PaymentPaid,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, transaction.Status)
	// Good returns never carry a fine even when one was requested.
	assert.Equal(t, int64(0), transaction.TotalFine)
	require.NotNil(t, transaction.ReturnDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryReturnPartialWithProblem(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("tx-1").
		WillReturnRows(transactionRows(models.TransactionOngoing, 2000))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM transaction_items WHERE transaction_id = $1 AND item_id = $2")).
		WithArgs("tx-1", "item-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txitem-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("item-1", models.ItemStatusDamaged, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transaction_items SET condition").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transaction_items WHERE transaction_id = $1 AND returned_at IS NULL")).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("UPDATE transactions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.Return(context.Background(), ReturnParams{
		TransactionID: "tx-1",
		Items:         []ReturnItemParams{{ItemID: "item-1", Condition: models.ConditionDamaged, Fine: 10000}},
		PaymentStatus: models.PaymentPending,
	})
	require.NoError(t, err)
	// One exemplar still out, so the batch problem does not close the transaction.
	assert.Equal(t, models.TransactionPartiallyReturned, transaction.Status)
	assert.Equal(t, int64(12000), transaction.TotalFine)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryResolvePendingWrongState(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("tx-1").
		WillReturnRows(transactionRows(models.TransactionOngoing, 0))
	mock.ExpectRollback()

	_, err := repo.ResolvePending(context.Background(), "tx-1", models.ResolvePaid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransactionNotPending))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryResolvePendingReplaced(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("tx-1").
		WillReturnRows(transactionRows(models.TransactionHasProblemPending, 15000))
	mock.ExpectQuery("SELECT (.+) FROM transaction_items").
		WithArgs("tx-1", models.PaymentPending, models.ConditionDamaged, models.ConditionLost).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "transaction_id", "item_id", "condition", "fine", "notes", "payment_status", "returned_at", "paid_at",
			"resolved", "resolved_at", "resolved_action", "created_at", "updated_at",
		}).AddRow("txitem-1", "tx-1", "item-1", models.ConditionLost, 15000, "", models.PaymentPending, now, nil,
			false, nil, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("item-1", models.ItemStatusAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transaction_items SET payment_status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transactions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.ResolvePending(context.Background(), "tx-1", models.ResolveReplaced)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionHasProblemResolved, transaction.Status)
	require.NotNil(t, transaction.PaymentStatus)
	assert.Equal(t, models.PaymentPaid, *transaction.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryResolvePendingPaidKeepsItemStatus(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("tx-1").
		WillReturnRows(transactionRows(models.TransactionHasProblemPending, 5000))
	mock.ExpectQuery("SELECT (.+) FROM transaction_items").
		WithArgs("tx-1", models.PaymentPending, models.ConditionDamaged, models.ConditionLost).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "transaction_id", "item_id", "condition", "fine", "notes", "payment_status", "returned_at", "paid_at",
			"resolved", "resolved_at", "resolved_action", "created_at", "updated_at",
		}).AddRow("txitem-1", "tx-1", "item-1", models.ConditionLost, 5000, "", models.PaymentPending, now, nil,
			false, nil, nil, now, now))
	// Settling with cash only: the lost exemplar keeps its status, so no items update
	// may run between the settlement and the transaction update.
	mock.ExpectExec("UPDATE transaction_items SET payment_status").
		WithArgs("txitem-1", models.PaymentPaid, sqlmock.AnyArg(), models.ResolvePaid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE transactions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	transaction, err := repo.ResolvePending(context.Background(), "tx-1", models.ResolvePaid)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionHasProblemResolved, transaction.Status)
	require.NotNil(t, transaction.PaymentStatus)
	assert.Equal(t, models.PaymentPaid, *transaction.PaymentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
