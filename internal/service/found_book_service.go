package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type foundBookRepository interface {
	Record(ctx context.Context, code, description string) (*models.FoundBook, error)
	List(ctx context.Context, status models.FoundBookStatus, limit int) ([]models.FoundBook, error)
	FindByID(ctx context.Context, id string) (*models.FoundBook, error)
	UpdateStatus(ctx context.Context, id string, status models.FoundBookStatus) (*models.FoundBook, error)
}

// FoundBookService implements the lost-and-found workflow.
type FoundBookService struct {
	repo      foundBookRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFoundBookService constructs a FoundBookService.
func NewFoundBookService(repo foundBookRepository, validate *validator.Validate, logger *zap.Logger) *FoundBookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FoundBookService{repo: repo, validator: validate, logger: logger}
}

// Record registers a recovered exemplar by scan code.
func (s *FoundBookService) Record(ctx context.Context, req dto.FoundBookRequest) (*models.FoundBook, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid found-book payload")
	}

	found, err := s.repo.Record(ctx, req.Code, req.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no exemplar matches the code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record found book")
	}

	s.logger.Info("found book recorded",
		zap.String("found_book_id", found.ID),
		zap.String("item_id", found.ItemID))
	return found, nil
}

// List returns found-book records, newest first.
func (s *FoundBookService) List(ctx context.Context, status models.FoundBookStatus, limit int) ([]models.FoundBook, error) {
	records, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list found books")
	}
	return records, nil
}

// UpdateStatus advances a record's lifecycle; closing it releases the exemplar.
func (s *FoundBookService) UpdateStatus(ctx context.Context, id string, req dto.UpdateFoundBookRequest) (*models.FoundBook, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid found-book payload")
	}

	record, err := s.repo.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "found-book record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update found book")
	}
	return record, nil
}
