package dto

import "github.com/yptunaskarya/perpus-api/internal/models"

// CreateBookRequest registers a catalog title with its opening copies.
type CreateBookRequest struct {
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Year      string `json:"year"`
	Publisher string `json:"publisher"`
	CoverURL  string `json:"cover_url"`
	Location  string `json:"location"`
	Copies    int    `json:"copies" validate:"min=0"`
}

// UpdateBookRequest mutates descriptive catalog fields. Copy counts only move
// through the stock endpoints.
type UpdateBookRequest struct {
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Year      string `json:"year"`
	Publisher string `json:"publisher"`
	CoverURL  string `json:"cover_url"`
	Location  string `json:"location"`
}

// AddStockRequest adds physical copies of an existing title.
type AddStockRequest struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Notes    string `json:"notes"`
}

// ReduceStockRequest withdraws copies from circulation.
type ReduceStockRequest struct {
	Quantity int                      `json:"quantity" validate:"required,min=1"`
	Reason   models.StockReduceReason `json:"reason" validate:"required,oneof=lost damaged withdrawn"`
	Notes    string                   `json:"notes"`
}

// BookListResponse wraps a catalog page with pagination metadata.
type BookListResponse struct {
	Books      []models.Book     `json:"books"`
	Pagination models.Pagination `json:"pagination"`
}
