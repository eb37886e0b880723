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
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
)

type mockFoundBookRepo struct {
	records       map[string]*models.FoundBook
	recordedCode  string
	recordErr     error
	updatedStatus models.FoundBookStatus
}

func (m *mockFoundBookRepo) Record(ctx context.Context, code, description string) (*models.FoundBook, error) {
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	m.recordedCode = code
	return &models.FoundBook{ID: "found-1", ItemID: "item-1", ItemCode: code, Description: description, Status: models.FoundBookRecorded}, nil
}

func (m *mockFoundBookRepo) List(ctx context.Context, status models.FoundBookStatus, limit int) ([]models.FoundBook, error) {
	out := make([]models.FoundBook, 0, len(m.records))
	for _, r := range m.records {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockFoundBookRepo) FindByID(ctx context.Context, id string) (*models.FoundBook, error) {
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFoundBookRepo) UpdateStatus(ctx context.Context, id string, status models.FoundBookStatus) (*models.FoundBook, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.Status = status
	m.updatedStatus = status
	return r, nil
}

func newFoundBookService(repo *mockFoundBookRepo) *FoundBookService {
	return NewFoundBookService(repo, validator.New(), zap.NewNop())
}

func TestFoundBookServiceRecord(t *testing.T) {
	repo := &mockFoundBookRepo{}
	svc := newFoundBookService(repo)

	found, err := svc.Record(context.Background(), dto.FoundBookRequest{Code: "BOOK-1-001", Description: "ditemukan di kelas XII IPA 1"})
	require.NoError(t, err)

	assert.Equal(t, "BOOK-1-001", repo.recordedCode)
	assert.Equal(t, models.FoundBookRecorded, found.Status)
}

func TestFoundBookServiceRecordUnknownCode(t *testing.T) {
	repo := &mockFoundBookRepo{recordErr: sql.ErrNoRows}
	svc := newFoundBookService(repo)

	_, err := svc.Record(context.Background(), dto.FoundBookRequest{Code: "GHOST-001"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFoundBookServiceRecordRequiresCode(t *testing.T) {
	svc := newFoundBookService(&mockFoundBookRepo{})

	_, err := svc.Record(context.Background(), dto.FoundBookRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFoundBookServiceUpdateStatus(t *testing.T) {
	repo := &mockFoundBookRepo{records: map[string]*models.FoundBook{
		"found-1": {ID: "found-1", ItemID: "item-1", Status: models.FoundBookRecorded},
	}}
	svc := newFoundBookService(repo)

	record, err := svc.UpdateStatus(context.Background(), "found-1", dto.UpdateFoundBookRequest{Status: models.FoundBookResolved})
	require.NoError(t, err)
	assert.Equal(t, models.FoundBookResolved, record.Status)
	assert.Equal(t, models.FoundBookResolved, repo.updatedStatus)
}

func TestFoundBookServiceUpdateStatusRejectsUnknown(t *testing.T) {
	svc := newFoundBookService(&mockFoundBookRepo{})

	_, err := svc.UpdateStatus(context.Background(), "found-1", dto.UpdateFoundBookRequest{Status: "burned"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
