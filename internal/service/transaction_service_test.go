package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type mockTransactionRepo struct {
	borrowParams  *repository.BorrowParams
	borrowErr     error
	returnParams  *repository.ReturnParams
	returnErr     error
	resolveAction models.ResolveAction
	resolveErr    error
	transaction   *models.Transaction
	detail        *models.TransactionDetail
	items         []models.TransactionItemDetail
	list          []models.TransactionDetail
	searchErr     error
}

func (m *mockTransactionRepo) Borrow(ctx context.Context, params repository.BorrowParams) (*models.Transaction, error) {
	m.borrowParams = &params
	if m.borrowErr != nil {
		return nil, m.borrowErr
	}
	return m.transaction, nil
}

func (m *mockTransactionRepo) Return(ctx context.Context, params repository.ReturnParams) (*models.Transaction, error) {
	m.returnParams = &params
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return m.transaction, nil
}

func (m *mockTransactionRepo) ResolvePending(ctx context.Context, transactionID string, action models.ResolveAction) (*models.Transaction, error) {
	m.resolveAction = action
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return m.transaction, nil
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id string) (*models.TransactionDetail, error) {
	if m.detail == nil {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockTransactionRepo) GetByReceipt(ctx context.Context, receiptNumber string) (*models.TransactionDetail, error) {
	if m.detail == nil || m.detail.ReceiptNumber != receiptNumber {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func (m *mockTransactionRepo) List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error) {
	return m.list, nil
}

func (m *mockTransactionRepo) SearchByStudent(ctx context.Context, q string, limit int) ([]models.TransactionDetail, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.list, nil
}

func (m *mockTransactionRepo) ListItems(ctx context.Context, transactionID string) ([]models.TransactionItemDetail, error) {
	return m.items, nil
}

type mockStudentFinder struct {
	student *models.Student
	err     error
}

func (m *mockStudentFinder) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.student, nil
}

func newTransactionFixture() (*mockTransactionRepo, *mockStudentFinder) {
	transaction := models.Transaction{
		ID:            "tx-1",
		StudentID:     "student-1",
		Status:        models.TransactionOngoing,
		ReceiptNumber: "TX-1700000000000",
	}
	repo := &mockTransactionRepo{
		transaction: &transaction,
		detail:      &models.TransactionDetail{Transaction: transaction},
	}
	students := &mockStudentFinder{student: &models.Student{ID: "student-1", Name: "Siti Rahayu"}}
	return repo, students
}

func newTransactionService(repo *mockTransactionRepo, students *mockStudentFinder, config TransactionConfig) *TransactionService {
	return NewTransactionService(repo, students, nil, nil, validator.New(), zap.NewNop(), config)
}

func TestTransactionServiceBorrowDefaults(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{DefaultOfficerTitle: "Petugas Perpustakaan", BranchID: "pusat"})
	officer := &models.UserInfo{ID: "user-1", Name: "Budi Santoso", Role: models.RoleOfficer}

	res, err := svc.Borrow(context.Background(), dto.BorrowRequest{StudentID: "student-1", Items: []string{"BOOK-1-001"}}, officer)
	require.NoError(t, err)
	require.NotNil(t, repo.borrowParams)

	assert.True(t, strings.HasPrefix(repo.borrowParams.ReceiptNumber, "TX-"))
	assert.Equal(t, "pusat", repo.borrowParams.BranchID)
	assert.Equal(t, "Budi Santoso", repo.borrowParams.OfficerName)
	require.NotNil(t, repo.borrowParams.OfficerID)
	assert.Equal(t, "user-1", *repo.borrowParams.OfficerID)
	assert.Equal(t, "Petugas Perpustakaan", repo.borrowParams.OfficerTitle)

	require.NotNil(t, repo.borrowParams.DueDate)
	expected := time.Now().UTC().AddDate(0, 0, 7)
	assert.WithinDuration(t, expected, *repo.borrowParams.DueDate, time.Minute)

	assert.Equal(t, "tx-1", res.Transaction.ID)
}

func TestTransactionServiceBorrowExplicitDueDate(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{DefaultLoanDays: 14})
	due := time.Now().UTC().AddDate(0, 1, 0)

	_, err := svc.Borrow(context.Background(), dto.BorrowRequest{StudentID: "student-1", Items: []string{"BOOK-1-001"}, DueDate: &due}, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.borrowParams.DueDate)
	assert.Equal(t, due, *repo.borrowParams.DueDate)
}

func TestTransactionServiceBorrowStudentMissing(t *testing.T) {
	repo, _ := newTransactionFixture()
	students := &mockStudentFinder{err: sql.ErrNoRows}
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.Borrow(context.Background(), dto.BorrowRequest{StudentID: "ghost", Items: []string{"BOOK-1-001"}}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.borrowParams)
}

func TestTransactionServiceReceiptNumbersUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		receipt := newReceiptNumber()
		assert.True(t, strings.HasPrefix(receipt, "TX-"))
		require.False(t, seen[receipt], "receipt %s minted twice", receipt)
		seen[receipt] = true
	}
}

func TestTransactionServiceBorrowItemClaimed(t *testing.T) {
	repo, students := newTransactionFixture()
	repo.borrowErr = repository.ErrItemUnavailable
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.Borrow(context.Background(), dto.BorrowRequest{StudentID: "student-1", Items: []string{"BOOK-1-001"}}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTransactionServiceBorrowRejectsEmptyItems(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.Borrow(context.Background(), dto.BorrowRequest{StudentID: "student-1"}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransactionServiceReturnDefaultsPaymentPaid(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.Return(context.Background(), "tx-1", dto.ReturnRequest{
		Items: []dto.ReturnItemRequest{{ItemID: "item-1", Condition: models.ConditionGood}},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.returnParams)
	assert.Equal(t, models.PaymentPaid, repo.returnParams.PaymentStatus)
	require.Len(t, repo.returnParams.Items, 1)
	assert.Equal(t, "item-1", repo.returnParams.Items[0].ItemID)
}

func TestTransactionServiceReturnClosedTransaction(t *testing.T) {
	repo, students := newTransactionFixture()
	repo.returnErr = repository.ErrTransactionClosed
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.Return(context.Background(), "tx-1", dto.ReturnRequest{
		Items: []dto.ReturnItemRequest{{ItemID: "item-1", Condition: models.ConditionLost, Fine: 50000}},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestTransactionServiceReturnRejectsUnknownCondition(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.Return(context.Background(), "tx-1", dto.ReturnRequest{
		Items: []dto.ReturnItemRequest{{ItemID: "item-1", Condition: "pristine"}},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.returnParams)
}

func TestTransactionServiceResolvePendingNotPending(t *testing.T) {
	repo, students := newTransactionFixture()
	repo.resolveErr = repository.ErrTransactionNotPending
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.ResolvePending(context.Background(), "tx-1", dto.ResolvePendingRequest{Action: models.ResolvePaid})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestTransactionServiceResolvePendingReplaced(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{})

	res, err := svc.ResolvePending(context.Background(), "tx-1", dto.ResolvePendingRequest{Action: models.ResolveReplaced})
	require.NoError(t, err)
	assert.Equal(t, models.ResolveReplaced, repo.resolveAction)
	assert.Equal(t, "tx-1", res.Transaction.ID)
}

func TestTransactionServiceGetByReceiptMissing(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.GetByReceipt(context.Background(), "TX-does-not-exist")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTransactionServiceExportDataset(t *testing.T) {
	repo, students := newTransactionFixture()
	nis := "2024001"
	name := "Siti Rahayu"
	due := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	repo.list = []models.TransactionDetail{
		{
			Transaction: models.Transaction{
				ReceiptNumber: "TX-1700000000000",
				BorrowDate:    time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
				DueDate:       &due,
				Status:        models.TransactionOngoing,
				TotalFine:     5000,
				OfficerName:   "Budi Santoso",
			},
			StudentNIS:  &nis,
			StudentName: &name,
		},
	}
	svc := newTransactionService(repo, students, TransactionConfig{})

	data, err := svc.ExportDataset(context.Background(), models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)

	assert.Equal(t, "receipt_number", data.Headers[0])
	assert.Equal(t, "TX-1700000000000", data.Rows[0][0])
	assert.Equal(t, "2024001", data.Rows[0][1])
	assert.Equal(t, "Siti Rahayu", data.Rows[0][2])
	assert.Equal(t, "2026-09-01", data.Rows[0][3])
	assert.Equal(t, "2026-09-08", data.Rows[0][4])
	assert.Equal(t, "", data.Rows[0][5])
	assert.Equal(t, "ongoing", data.Rows[0][6])
	assert.Equal(t, "5000", data.Rows[0][7])
}

func TestTransactionServiceSearchRequiresQuery(t *testing.T) {
	repo, students := newTransactionFixture()
	svc := newTransactionService(repo, students, TransactionConfig{})

	_, err := svc.SearchByStudent(context.Background(), "", 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
