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
	"github.com/yptunaskarya/perpus-api/pkg/export"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	byNIS    map[string]string
	created  []*models.Student
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, st := range m.students {
		out = append(out, *st)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := m.students[id]; ok {
		copied := *st
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByNIS(ctx context.Context, nis string) (*models.Student, error) {
	if id, ok := m.byNIS[nis]; ok {
		return m.FindByID(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByNIS(ctx context.Context, nis, excludeID string) (bool, error) {
	owner, ok := m.byNIS[nis]
	if !ok {
		return false, nil
	}
	return owner != excludeID, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.created = append(m.created, student)
	if m.byNIS == nil {
		m.byNIS = map[string]string{}
	}
	m.byNIS[student.NIS] = student.ID
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := m.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) Search(ctx context.Context, q string, limit int) ([]models.Student, error) {
	return nil, nil
}

func newStudentService(repo *mockStudentRepo) *StudentService {
	return NewStudentService(repo, validator.New(), zap.NewNop())
}

func TestStudentServiceCreateDuplicateNIS(t *testing.T) {
	repo := &mockStudentRepo{byNIS: map[string]string{"2024001": "student-1"}}
	svc := newStudentService(repo)

	_, err := svc.Create(context.Background(), dto.CreateStudentRequest{NIS: "2024001", Name: "Siti Rahayu"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestStudentServiceCreateRejectsBadEmail(t *testing.T) {
	repo := &mockStudentRepo{byNIS: map[string]string{}}
	svc := newStudentService(repo)

	_, err := svc.Create(context.Background(), dto.CreateStudentRequest{NIS: "2024002", Name: "Siti Rahayu", Email: "bukan-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateKeepsStatusWhenEmpty(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.Student{"student-1": {ID: "student-1", NIS: "2024001", Name: "Siti Rahayu", Status: "graduated"}},
		byNIS:    map[string]string{"2024001": "student-1"},
	}
	svc := newStudentService(repo)

	student, err := svc.Update(context.Background(), "student-1", dto.UpdateStudentRequest{NIS: "2024001", Name: "Siti Rahayu Putri"})
	require.NoError(t, err)
	assert.Equal(t, "graduated", student.Status)
	assert.Equal(t, "Siti Rahayu Putri", student.Name)
}

func TestStudentServiceSearchRequiresQuery(t *testing.T) {
	svc := newStudentService(&mockStudentRepo{})

	_, err := svc.Search(context.Background(), "", 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceImportSkipsBadRows(t *testing.T) {
	repo := &mockStudentRepo{byNIS: map[string]string{"2024001": "student-1"}}
	svc := newStudentService(repo)

	sheet := export.Dataset{
		Headers: []string{"NIS", "Name", "Class"},
		Rows: [][]string{
			{"2024002", "Agus Wijaya", "XI IPA 2"},
			{"", "Tanpa NIS", "X IPS 1"},
			{"2024001", "Duplikat NIS", "XII IPA 1"},
		},
	}
	raw, err := export.NewXLSXExporter().Render(sheet, "Sheet1")
	require.NoError(t, err)

	result, err := svc.Import(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "2024002", repo.created[0].NIS)
	assert.Equal(t, "XI IPA 2", repo.created[0].Class)
}

func TestStudentServiceExportDataset(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.Student{"student-1": {ID: "student-1", NIS: "2024001", Name: "Siti Rahayu", Class: "XII IPA 1", Status: "active"}},
	}
	svc := newStudentService(repo)

	data, err := svc.ExportDataset(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, "2024001", data.Rows[0][0])
	assert.Equal(t, "Siti Rahayu", data.Rows[0][1])
}
