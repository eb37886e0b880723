package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	"github.com/yptunaskarya/perpus-api/internal/repository"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type mockInventoryRepo struct {
	items    map[string]*models.InventoryItem
	created  *models.InventoryItem
	createBy *string
	movedLog *models.InventoryLog
	moveErr  error
}

func (m *mockInventoryRepo) List(ctx context.Context, category, search string) ([]models.InventoryItem, error) {
	out := make([]models.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	return out, nil
}

func (m *mockInventoryRepo) FindByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	if item, ok := m.items[id]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInventoryRepo) Create(ctx context.Context, item *models.InventoryItem, byUserID *string) error {
	m.created = item
	m.createBy = byUserID
	return nil
}

func (m *mockInventoryRepo) Update(ctx context.Context, item *models.InventoryItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return sql.ErrNoRows
	}
	m.items[item.ID] = item
	return nil
}

func (m *mockInventoryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func (m *mockInventoryRepo) Move(ctx context.Context, log *models.InventoryLog) (*models.InventoryItem, error) {
	if m.moveErr != nil {
		return nil, m.moveErr
	}
	m.movedLog = log
	item, ok := m.items[log.InventoryID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if log.Type == models.InventoryLogOut {
		item.Stock -= log.Quantity
	} else {
		item.Stock += log.Quantity
	}
	copied := *item
	return &copied, nil
}

func (m *mockInventoryRepo) ListLogs(ctx context.Context, inventoryID string, limit int) ([]models.InventoryLog, error) {
	return nil, nil
}

func newInventoryService(repo *mockInventoryRepo) *InventoryService {
	return NewInventoryService(repo, validator.New(), zap.NewNop(), "pusat")
}

func TestInventoryServiceCreateStampsBranch(t *testing.T) {
	repo := &mockInventoryRepo{}
	svc := newInventoryService(repo)
	userID := "user-1"

	item, err := svc.Create(context.Background(), dto.CreateInventoryRequest{
		Name:     "Kertas HVS A4",
		Category: "ATK",
		Unit:     "rim",
		Stock:    10,
		MinStock: 2,
	}, &userID)
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.Equal(t, "pusat", item.BranchID)
	assert.Equal(t, 10, item.Stock)
	require.NotNil(t, repo.createBy)
	assert.Equal(t, "user-1", *repo.createBy)
}

func TestInventoryServiceMoveOut(t *testing.T) {
	repo := &mockInventoryRepo{items: map[string]*models.InventoryItem{
		"inv-1": {ID: "inv-1", Name: "Kertas HVS A4", Stock: 10, MinStock: 2},
	}}
	svc := newInventoryService(repo)
	userID := "user-1"

	res, err := svc.Move(context.Background(), "inv-1", dto.MovementRequest{
		Type:     models.InventoryLogOut,
		Quantity: 3,
	}, &userID)
	require.NoError(t, err)

	assert.Equal(t, 7, res.Item.Stock)
	require.NotNil(t, repo.movedLog)
	assert.Equal(t, models.InventoryLogOut, repo.movedLog.Type)
	assert.Equal(t, 3, repo.movedLog.Quantity)
	require.NotNil(t, repo.movedLog.ByUserID)
	assert.Equal(t, "user-1", *repo.movedLog.ByUserID)
}

func TestInventoryServiceMoveInsufficientStock(t *testing.T) {
	repo := &mockInventoryRepo{moveErr: repository.ErrInsufficientStock}
	svc := newInventoryService(repo)

	_, err := svc.Move(context.Background(), "inv-1", dto.MovementRequest{
		Type:     models.InventoryLogOut,
		Quantity: 99,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInsufficientStock.Code, appErrors.FromError(err).Code)
}

func TestInventoryServiceMoveRejectsUnknownType(t *testing.T) {
	repo := &mockInventoryRepo{}
	svc := newInventoryService(repo)

	_, err := svc.Move(context.Background(), "inv-1", dto.MovementRequest{Type: "transfer", Quantity: 1}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.movedLog)
}

func TestInventoryServiceUpdateDoesNotTouchStock(t *testing.T) {
	repo := &mockInventoryRepo{items: map[string]*models.InventoryItem{
		"inv-1": {ID: "inv-1", Name: "Kertas HVS A4", Stock: 10, MinStock: 2},
	}}
	svc := newInventoryService(repo)

	item, err := svc.Update(context.Background(), "inv-1", dto.UpdateInventoryRequest{
		Name:     "Kertas HVS A4 80gsm",
		MinStock: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, item.Stock)
	assert.Equal(t, 5, item.MinStock)
}

func TestInventoryServiceLogsMissingItem(t *testing.T) {
	svc := newInventoryService(&mockInventoryRepo{items: map[string]*models.InventoryItem{}})

	_, err := svc.Logs(context.Background(), "ghost", 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
