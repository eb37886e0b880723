package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/export"
)

type transactionRepository interface {
	Borrow(ctx context.Context, params repository.BorrowParams) (*models.Transaction, error)
	Return(ctx context.Context, params repository.ReturnParams) (*models.Transaction, error)
	ResolvePending(ctx context.Context, transactionID string, action models.ResolveAction) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.TransactionDetail, error)
	GetByReceipt(ctx context.Context, receiptNumber string) (*models.TransactionDetail, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error)
	SearchByStudent(ctx context.Context, q string, limit int) ([]models.TransactionDetail, error)
	ListItems(ctx context.Context, transactionID string) ([]models.TransactionItemDetail, error)
}

type transactionStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// TransactionConfig carries lending policy knobs.
type TransactionConfig struct {
	DefaultLoanDays     int
	DefaultOfficerTitle string
	BranchID            string
}

// TransactionService implements the borrow/return/resolution use cases on top of the
// atomic repository operations.
type TransactionService struct {
	repo      transactionRepository
	students  transactionStudentRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    TransactionConfig
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(repo transactionRepository, students transactionStudentRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config TransactionConfig) *TransactionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultLoanDays <= 0 {
		config.DefaultLoanDays = 7
	}
	return &TransactionService{repo: repo, students: students, cache: cache, metrics: metrics, validator: validate, logger: logger, config: config}
}

// newReceiptNumber mints a receipt token. The random suffix keeps two borrows landing
// in the same millisecond from colliding on the unique constraint.
func newReceiptNumber() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("TX-%d", time.Now().UTC().UnixNano())
	}
	return fmt.Sprintf("TX-%d-%s", time.Now().UTC().UnixMilli(), hex.EncodeToString(suffix))
}

// Borrow opens a lending transaction. The officer identity is snapshotted from the
// authenticated account so later account changes don't rewrite history.
func (s *TransactionService) Borrow(ctx context.Context, req dto.BorrowRequest, officer *models.UserInfo) (*dto.TransactionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid borrow payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	dueDate := req.DueDate
	if dueDate == nil {
		d := time.Now().UTC().AddDate(0, 0, s.config.DefaultLoanDays)
		dueDate = &d
	}

	params := repository.BorrowParams{
		StudentID:     req.StudentID,
		ItemCodes:     req.Items,
		DueDate:       dueDate,
		Notes:         req.Notes,
		BranchID:      s.config.BranchID,
		ReceiptNumber: newReceiptNumber(),
		OfficerTitle:  s.config.DefaultOfficerTitle,
	}
	if officer != nil {
		params.OfficerID = &officer.ID
		params.OfficerName = officer.Name
	}

	transaction, err := s.repo.Borrow(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrItemUnavailable) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}

	s.metrics.RecordBorrow()
	s.invalidateDashboard(ctx)
	s.logger.Info("borrow transaction opened",
		zap.String("transaction_id", transaction.ID),
		zap.String("student_id", transaction.StudentID),
		zap.Int("items", len(req.Items)))

	return s.detail(ctx, transaction.ID)
}

// Return processes a return batch. Returns against a closed transaction fail with an
// invalid-state conflict rather than silently reopening it.
func (s *TransactionService) Return(ctx context.Context, transactionID string, req dto.ReturnRequest, officer *models.UserInfo) (*dto.TransactionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid return payload")
	}

	payment := req.PaymentStatus
	if payment == "" {
		payment = models.PaymentPaid
	}

	params := repository.ReturnParams{
		TransactionID: transactionID,
		PaymentStatus: payment,
	}
	if officer != nil {
		params.OfficerName = officer.Name
		params.OfficerTitle = s.config.DefaultOfficerTitle
	}
	for _, item := range req.Items {
		params.Items = append(params.Items, repository.ReturnItemParams{
			ItemID:    item.ItemID,
			Condition: item.Condition,
			Fine:      item.Fine,
			Notes:     item.Notes,
		})
	}

	transaction, err := s.repo.Return(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionClosed):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "transaction is already closed")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transaction or item not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to process return")
		}
	}

	s.metrics.RecordReturn(transaction.Status)
	s.invalidateDashboard(ctx)
	s.logger.Info("return processed",
		zap.String("transaction_id", transaction.ID),
		zap.String("status", string(transaction.Status)),
		zap.Int64("total_fine", transaction.TotalFine))

	return s.detail(ctx, transaction.ID)
}

// ResolvePending settles the outstanding fines of a has_problem_pending transaction.
func (s *TransactionService) ResolvePending(ctx context.Context, transactionID string, req dto.ResolvePendingRequest) (*dto.TransactionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve payload")
	}

	transaction, err := s.repo.ResolvePending(ctx, transactionID, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotPending):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "transaction has no pending payment")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transaction not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve transaction")
		}
	}

	s.invalidateDashboard(ctx)
	s.logger.Info("pending transaction resolved",
		zap.String("transaction_id", transaction.ID),
		zap.String("action", string(req.Action)))

	return s.detail(ctx, transaction.ID)
}

// Get returns a transaction with its items.
func (s *TransactionService) Get(ctx context.Context, id string) (*dto.TransactionResponse, error) {
	return s.detail(ctx, id)
}

// GetByReceipt returns a transaction by receipt number, for barcode lookups.
func (s *TransactionService) GetByReceipt(ctx context.Context, receiptNumber string) (*dto.TransactionResponse, error) {
	detail, err := s.repo.GetByReceipt(ctx, receiptNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transaction not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch transaction")
	}
	items, err := s.repo.ListItems(ctx, detail.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch transaction items")
	}
	return &dto.TransactionResponse{Transaction: *detail, Items: items}, nil
}

// List returns transactions matching the filter. Student accounts are scoped to
// their own history by the caller.
func (s *TransactionService) List(ctx context.Context, filter models.TransactionFilter) ([]models.TransactionDetail, error) {
	transactions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return transactions, nil
}

// SearchByStudent finds ongoing transactions by student name or NIS fragment.
func (s *TransactionService) SearchByStudent(ctx context.Context, q string, limit int) ([]models.TransactionDetail, error) {
	if q == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "query is required")
	}
	transactions, err := s.repo.SearchByStudent(ctx, q, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search transactions")
	}
	return transactions, nil
}

// ExportDataset flattens the transaction history into a tabular dataset for the
// export formats.
func (s *TransactionService) ExportDataset(ctx context.Context, filter models.TransactionFilter) (export.Dataset, error) {
	if filter.Limit <= 0 {
		filter.Limit = 1000
	}
	transactions, err := s.repo.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transactions")
	}
	data := export.Dataset{
		Headers: []string{"receipt_number", "student_nis", "student_name", "borrow_date", "due_date", "return_date", "status", "total_fine", "officer_name"},
	}
	for _, tx := range transactions {
		dueDate := ""
		if tx.DueDate != nil {
			dueDate = tx.DueDate.Format("2006-01-02")
		}
		returnDate := ""
		if tx.ReturnDate != nil {
			returnDate = tx.ReturnDate.Format("2006-01-02")
		}
		nis := ""
		if tx.StudentNIS != nil {
			nis = *tx.StudentNIS
		}
		name := ""
		if tx.StudentName != nil {
			name = *tx.StudentName
		}
		data.Rows = append(data.Rows, []string{
			tx.ReceiptNumber,
			nis,
			name,
			tx.BorrowDate.Format("2006-01-02"),
			dueDate,
			returnDate,
			string(tx.Status),
			fmt.Sprintf("%d", tx.TotalFine),
			tx.OfficerName,
		})
	}
	return data, nil
}

func (s *TransactionService) detail(ctx context.Context, id string) (*dto.TransactionResponse, error) {
	detail, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transaction not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch transaction")
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch transaction items")
	}
	return &dto.TransactionResponse{Transaction: *detail, Items: items}, nil
}

func (s *TransactionService) invalidateDashboard(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
