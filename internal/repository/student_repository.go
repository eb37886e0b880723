package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, nis, name, class, major, birth_date, address, email, phone, status, created_at, updated_at`

// List returns students matching the provided filters with the total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	baseQuery := `FROM students WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Class != "" {
		conditions = append(conditions, fmt.Sprintf("class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(nis) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"nis":        true,
		"class":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByNIS fetches a student by its unique NIS.
func (r *StudentRepository) FindByNIS(ctx context.Context, nis string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE nis = $1 LIMIT 1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, nis); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByNIS checks whether a student with the given NIS exists, optionally
// excluding one id.
func (r *StudentRepository) ExistsByNIS(ctx context.Context, nis string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE nis = $1"
	args := []interface{}{nis}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check nis: %w", err)
	}
	return true, nil
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.Status == "" {
		student.Status = "active"
	}

	const query = `INSERT INTO students (id, nis, name, class, major, birth_date, address, email, phone, status, created_at, updated_at)
        VALUES (:id, :nis, :name, :class, :major, :birth_date, :address, :email, :phone, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update persists mutable fields of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET nis = :nis, name = :name, class = :class, major = :major, birth_date = :birth_date,
        address = :address, email = :email, phone = :phone, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a student record.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Search finds students by name or NIS fragment for lending lookups.
func (r *StudentRepository) Search(ctx context.Context, q string, limit int) ([]models.Student, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM students WHERE LOWER(name) LIKE $1 OR LOWER(nis) LIKE $1 ORDER BY name LIMIT %d`,
		studentColumns, limit)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, "%"+strings.ToLower(q)+"%"); err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	return students, nil
}
