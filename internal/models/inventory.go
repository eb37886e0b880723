package models

import "time"

// InventoryItem is a stocked consumable (non-book supplies). Stock is the cumulative
// sum of signed log quantities and is only mutated together with an appended log entry.
type InventoryItem struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Unit      string    `db:"unit" json:"unit"`
	Stock     int       `db:"stock" json:"stock"`
	MinStock  int       `db:"min_stock" json:"min_stock"`
	ImageURL  string    `db:"image_url" json:"image_url"`
	BranchID  string    `db:"branch_id" json:"branch_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// InventoryLogType is the movement direction.
type InventoryLogType string

const (
	InventoryLogIn  InventoryLogType = "in"
	InventoryLogOut InventoryLogType = "out"
)

// InventoryLog is an immutable movement entry. Entries are append-only; corrections are
// compensating entries, never updates.
type InventoryLog struct {
	ID          string           `db:"id" json:"id"`
	InventoryID string           `db:"inventory_id" json:"inventory_id"`
	Type        InventoryLogType `db:"type" json:"type"`
	Quantity    int              `db:"quantity" json:"quantity"`
	ByUserID    *string          `db:"by_user_id" json:"by_user_id,omitempty"`
	StudentID   *string          `db:"student_id" json:"student_id,omitempty"`
	Notes       string           `db:"notes" json:"notes"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
