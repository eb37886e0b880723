package models

import "time"

// FoundBookStatus tracks the lifecycle of a recovered exemplar.
type FoundBookStatus string

const (
	FoundBookRecorded        FoundBookStatus = "found"
	FoundBookReturnedToOwner FoundBookStatus = "returned_to_owner"
	FoundBookResolved        FoundBookStatus = "resolved"
)

// FoundBook records an exemplar recovered without an active claim. It has a lifecycle
// independent of borrow transactions; the item itself is parked in status "found" until
// reconciled.
type FoundBook struct {
	ID          string          `db:"id" json:"id"`
	ItemID      string          `db:"item_id" json:"item_id"`
	ItemCode    string          `db:"item_code" json:"item_code"`
	Description string          `db:"description" json:"description"`
	Status      FoundBookStatus `db:"status" json:"status"`
	FoundDate   time.Time       `db:"found_date" json:"found_date"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
