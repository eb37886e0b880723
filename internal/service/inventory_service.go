package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type inventoryRepository interface {
	List(ctx context.Context, category, search string) ([]models.InventoryItem, error)
	FindByID(ctx context.Context, id string) (*models.InventoryItem, error)
	Create(ctx context.Context, item *models.InventoryItem, byUserID *string) error
	Update(ctx context.Context, item *models.InventoryItem) error
	Delete(ctx context.Context, id string) error
	Move(ctx context.Context, log *models.InventoryLog) (*models.InventoryItem, error)
	ListLogs(ctx context.Context, inventoryID string, limit int) ([]models.InventoryLog, error)
}

// InventoryService implements the consumable-stock use cases. All stock movement
// flows through Move so the counter and its log stay consistent.
type InventoryService struct {
	repo      inventoryRepository
	validator *validator.Validate
	logger    *zap.Logger
	branchID  string
}

// NewInventoryService constructs an InventoryService.
func NewInventoryService(repo inventoryRepository, validate *validator.Validate, logger *zap.Logger, branchID string) *InventoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{repo: repo, validator: validate, logger: logger, branchID: branchID}
}

// List returns consumables, optionally filtered.
func (s *InventoryService) List(ctx context.Context, category, search string) ([]models.InventoryItem, error) {
	items, err := s.repo.List(ctx, category, search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inventory")
	}
	return items, nil
}

// Get fetches one consumable.
func (s *InventoryService) Get(ctx context.Context, id string) (*models.InventoryItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch inventory item")
	}
	return item, nil
}

// Create registers a consumable. A non-zero opening stock produces an initial
// inbound log entry.
func (s *InventoryService) Create(ctx context.Context, req dto.CreateInventoryRequest, byUserID *string) (*models.InventoryItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inventory payload")
	}

	item := &models.InventoryItem{
		Name:     req.Name,
		Category: req.Category,
		Unit:     req.Unit,
		Stock:    req.Stock,
		MinStock: req.MinStock,
		ImageURL: req.ImageURL,
		BranchID: s.branchID,
	}
	if err := s.repo.Create(ctx, item, byUserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create inventory item")
	}
	return item, nil
}

// Update mutates descriptive fields of a consumable.
func (s *InventoryService) Update(ctx context.Context, id string, req dto.UpdateInventoryRequest) (*models.InventoryItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid inventory payload")
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Name = req.Name
	item.Category = req.Category
	item.Unit = req.Unit
	item.MinStock = req.MinStock
	item.ImageURL = req.ImageURL

	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update inventory item")
	}
	return item, nil
}

// Delete removes a consumable and its log.
func (s *InventoryService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete inventory item")
	}
	return nil
}

// Move applies one stock movement. Outbound movements that exceed the current stock
// fail with a conflict and leave both the counter and the log untouched.
func (s *InventoryService) Move(ctx context.Context, id string, req dto.MovementRequest, byUserID *string) (*dto.MovementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid movement payload")
	}

	log := &models.InventoryLog{
		InventoryID: id,
		Type:        req.Type,
		Quantity:    req.Quantity,
		ByUserID:    byUserID,
		StudentID:   req.StudentID,
		Notes:       req.Notes,
	}
	item, err := s.repo.Move(ctx, log)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, appErrors.Clone(appErrors.ErrInsufficientStock, "not enough stock for this movement")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "inventory item not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply movement")
		}
	}

	if item.Stock < item.MinStock {
		s.logger.Warn("inventory below minimum stock",
			zap.String("inventory_id", item.ID),
			zap.String("name", item.Name),
			zap.Int("stock", item.Stock),
			zap.Int("min_stock", item.MinStock))
	}

	return &dto.MovementResponse{Item: *item, Log: *log}, nil
}

// Logs returns the movement history of one consumable.
func (s *InventoryService) Logs(ctx context.Context, id string, limit int) ([]models.InventoryLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.repo.ListLogs(ctx, id, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inventory logs")
	}
	return logs, nil
}
