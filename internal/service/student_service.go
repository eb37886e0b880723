package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yptunaskarya/perpus-api/internal/dto"
	"github.com/yptunaskarya/perpus-api/internal/models"
	appErrors "github.com/yptunaskarya/perpus-api/pkg/errors"
	"github.com/yptunaskarya/perpus-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByNIS(ctx context.Context, nis string) (*models.Student, error)
	ExistsByNIS(ctx context.Context, nis, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, limit int) ([]models.Student, error)
}

// StudentService implements student registry use cases including bulk import.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns a student page.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) (*dto.StudentListResponse, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return &dto.StudentListResponse{
		Students:   students,
		Pagination: models.Pagination{Page: page, PageSize: size, TotalCount: total},
	}, nil
}

// Get fetches one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// Create registers a student. NIS must be unique.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	exists, err := s.repo.ExistsByNIS(ctx, req.NIS, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check nis")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "nis already registered")
	}

	student := &models.Student{
		NIS:       req.NIS,
		Name:      req.Name,
		Class:     req.Class,
		Major:     req.Major,
		BirthDate: req.BirthDate,
		Address:   req.Address,
		Email:     req.Email,
		Phone:     req.Phone,
		Status:    req.Status,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update mutates an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByNIS(ctx, req.NIS, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check nis")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "nis already registered")
	}

	student.NIS = req.NIS
	student.Name = req.Name
	student.Class = req.Class
	student.Major = req.Major
	student.BirthDate = req.BirthDate
	student.Address = req.Address
	student.Email = req.Email
	student.Phone = req.Phone
	if req.Status != "" {
		student.Status = req.Status
	}

	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student record.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// Search finds students for the lending desk.
func (s *StudentService) Search(ctx context.Context, q string, limit int) ([]models.Student, error) {
	if q == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "query is required")
	}
	students, err := s.repo.Search(ctx, q, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search students")
	}
	return students, nil
}

// Import ingests a spreadsheet of students keyed by NIS. Existing NIS rows are
// skipped rather than overwritten.
func (s *StudentService) Import(ctx context.Context, raw []byte) (*dto.ImportResult, error) {
	data, err := export.Parse(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable spreadsheet")
	}

	cols := columnIndex(data.Headers)
	result := &dto.ImportResult{}
	for i, row := range data.Rows {
		nis := cell(row, cols.lookup("nis"))
		name := cell(row, cols.lookup("name"))
		if nis == "" || name == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing nis or name", i+2))
			continue
		}
		req := dto.CreateStudentRequest{
			NIS:       nis,
			Name:      name,
			Class:     cell(row, cols.lookup("class")),
			Major:     cell(row, cols.lookup("major")),
			BirthDate: cell(row, cols.lookup("birthdate")),
			Address:   cell(row, cols.lookup("address")),
			Email:     cell(row, cols.lookup("email")),
			Phone:     cell(row, cols.lookup("phone")),
		}
		if _, err := s.Create(ctx, req); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ExportDataset flattens the registry into a tabular dataset for the export formats.
func (s *StudentService) ExportDataset(ctx context.Context, filter models.StudentFilter) (export.Dataset, error) {
	filter.Page = 1
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	students, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	data := export.Dataset{
		Headers: []string{"nis", "name", "class", "major", "birth_date", "address", "email", "phone", "status"},
	}
	for _, st := range students {
		data.Rows = append(data.Rows, []string{
			st.NIS, st.Name, st.Class, st.Major, st.BirthDate, st.Address, st.Email, st.Phone, st.Status,
		})
	}
	return data, nil
}
