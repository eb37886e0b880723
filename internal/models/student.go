package models

import "time"

// Student represents a learner registered at the school, referenced by transactions
// through its id. NIS is the unique external identifier.
type Student struct {
	ID        string    `db:"id" json:"id"`
	NIS       string    `db:"nis" json:"nis"`
	Name      string    `db:"name" json:"name"`
	Class     string    `db:"class" json:"class"`
	Major     string    `db:"major" json:"major"`
	BirthDate string    `db:"birth_date" json:"birth_date"`
	Address   string    `db:"address" json:"address"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Class     string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
