package models

import "time"

// Book is a catalog title. Physical copies are tracked as Items; TotalCopies is a
// maintained counter mutated only through the stock-adjustment paths.
type Book struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Author      string    `db:"author" json:"author"`
	Category    string    `db:"category" json:"category"`
	Year        string    `db:"year" json:"year"`
	Publisher   string    `db:"publisher" json:"publisher"`
	CoverURL    string    `db:"cover_url" json:"cover_url"`
	TotalCopies int       `db:"total_copies" json:"total_copies"`
	QRCodeURL   string    `db:"qr_code_url" json:"qr_code_url"`
	Location    string    `db:"location" json:"location"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BookFilter encapsulates list/search parameters for the catalog.
type BookFilter struct {
	Search    string
	Category  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StockReduceReason classifies why copies leave the catalog.
type StockReduceReason string

const (
	ReduceReasonLost      StockReduceReason = "lost"
	ReduceReasonDamaged   StockReduceReason = "damaged"
	ReduceReasonWithdrawn StockReduceReason = "withdrawn"
)

// ItemStatus maps the reduction reason to the status stamped on affected items.
// Withdrawn copies are kept as damaged so they stay out of circulation.
func (r StockReduceReason) ItemStatus() ItemStatus {
	if r == ReduceReasonLost {
		return ItemStatusLost
	}
	return ItemStatusDamaged
}
