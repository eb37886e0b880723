package models

import "time"

// ItemStatus is the single source of truth for whether an exemplar may be lent.
type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusBorrowed  ItemStatus = "borrowed"
	ItemStatusLost      ItemStatus = "lost"
	ItemStatusDamaged   ItemStatus = "damaged"
	ItemStatusFound     ItemStatus = "found"
)

// Item is one physical exemplar of a Book, identified by an immutable unique code
// that doubles as its barcode.
type Item struct {
	ID         string     `db:"id" json:"id"`
	BookID     string     `db:"book_id" json:"book_id"`
	UniqueCode string     `db:"unique_code" json:"unique_code"`
	Status     ItemStatus `db:"status" json:"status"`
	Location   string     `db:"location" json:"location"`
	BranchID   string     `db:"branch_id" json:"branch_id"`
	Notes      string     `db:"notes" json:"notes"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ItemDetail joins the owning book title for scan lookups.
type ItemDetail struct {
	Item
	BookTitle  *string `db:"book_title" json:"book_title,omitempty"`
	BookAuthor *string `db:"book_author" json:"book_author,omitempty"`
}
