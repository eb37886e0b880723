package dto

import "github.com/yptunaskarya/perpus-api/internal/models"

// CreateUserRequest registers an application account.
type CreateUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3"`
	Password  string          `json:"password" validate:"required,min=8"`
	Name      string          `json:"name" validate:"required"`
	Role      models.UserRole `json:"role" validate:"required,oneof=admin officer teacher student intern"`
	StudentID *string         `json:"student_id"`
}

// UpdateUserRequest mutates an account. Password is optional; empty keeps the
// current hash.
type UpdateUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3"`
	Password  string          `json:"password" validate:"omitempty,min=8"`
	Name      string          `json:"name" validate:"required"`
	Role      models.UserRole `json:"role" validate:"required,oneof=admin officer teacher student intern"`
	StudentID *string         `json:"student_id"`
}

// UserListResponse wraps an account page with pagination metadata.
type UserListResponse struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}
