package dto

import "github.com/yptunaskarya/perpus-api/internal/models"

// CreateStudentRequest registers a student.
type CreateStudentRequest struct {
	NIS       string `json:"nis" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Class     string `json:"class"`
	Major     string `json:"major"`
	BirthDate string `json:"birth_date"`
	Address   string `json:"address"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive graduated"`
}

// UpdateStudentRequest mutates an existing student record.
type UpdateStudentRequest struct {
	NIS       string `json:"nis" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Class     string `json:"class"`
	Major     string `json:"major"`
	BirthDate string `json:"birth_date"`
	Address   string `json:"address"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive graduated"`
}

// StudentListResponse wraps a student page with pagination metadata.
type StudentListResponse struct {
	Students   []models.Student  `json:"students"`
	Pagination models.Pagination `json:"pagination"`
}

// ImportResult summarises a bulk import run.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
