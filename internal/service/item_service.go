package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/models"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type itemRepository interface {
	FindByCode(ctx context.Context, code string) (*models.ItemDetail, error)
	FindByID(ctx context.Context, id string) (*models.ItemDetail, error)
	ListByBook(ctx context.Context, bookID string) ([]models.Item, error)
	CountByStatus(ctx context.Context, bookID string) (map[models.ItemStatus]int, error)
}

// ItemService serves exemplar lookups for scanners and availability views.
type ItemService struct {
	repo   itemRepository
	logger *zap.Logger
}

// NewItemService constructs an ItemService.
func NewItemService(repo itemRepository, logger *zap.Logger) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemService{repo: repo, logger: logger}
}

// Lookup resolves a scan code: first as a unique code, then as an exemplar id.
func (s *ItemService) Lookup(ctx context.Context, code string) (*models.ItemDetail, error) {
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code is required")
	}
	item, err := s.repo.FindByCode(ctx, code)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up item")
	}

	item, err = s.repo.FindByID(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no exemplar matches the code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up item")
	}
	return item, nil
}

// ListByBook returns every exemplar of a title.
func (s *ItemService) ListByBook(ctx context.Context, bookID string) ([]models.Item, error) {
	items, err := s.repo.ListByBook(ctx, bookID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
	}
	return items, nil
}

// Availability returns the status breakdown of a title's exemplars.
func (s *ItemService) Availability(ctx context.Context, bookID string) (map[models.ItemStatus]int, error) {
	counts, err := s.repo.CountByStatus(ctx, bookID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count items")
	}
	return counts, nil
}
