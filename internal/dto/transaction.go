package dto

import (
	"time"

	"github.com/yptunaskarya/perpus-api/internal/models"
)

// BorrowRequest opens a borrow transaction for one student. Each entry of Items is a
// scan code: either an exemplar's unique code or a book id, in which case the first
// available exemplar of that title is taken.
type BorrowRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	Items     []string   `json:"items" validate:"required,min=1,dive,required"`
	DueDate   *time.Time `json:"due_date"`
	Notes     string     `json:"notes"`
}

// ReturnItemRequest reports the post-return condition of one borrowed exemplar.
type ReturnItemRequest struct {
	ItemID    string                 `json:"item_id" validate:"required"`
	Condition models.ReturnCondition `json:"condition" validate:"required,oneof=good damaged lost"`
	Fine      int64                  `json:"fine" validate:"min=0"`
	Notes     string                 `json:"notes"`
}

// ReturnRequest processes a return batch against an open transaction.
type ReturnRequest struct {
	Items         []ReturnItemRequest  `json:"items" validate:"required,min=1,dive"`
	PaymentStatus models.PaymentStatus `json:"payment_status" validate:"omitempty,oneof=paid pending"`
}

// ResolvePendingRequest settles the outstanding fines of a pending transaction.
type ResolvePendingRequest struct {
	Action models.ResolveAction `json:"action" validate:"required,oneof=paid replaced"`
}

// FoundBookRequest records a recovered exemplar by scan code.
type FoundBookRequest struct {
	Code        string `json:"code" validate:"required"`
	Description string `json:"description"`
}

// UpdateFoundBookRequest advances a found-book record's lifecycle.
type UpdateFoundBookRequest struct {
	Status models.FoundBookStatus `json:"status" validate:"required,oneof=found returned_to_owner resolved"`
}

// TransactionResponse pairs a transaction with its item rows.
type TransactionResponse struct {
	Transaction models.TransactionDetail       `json:"transaction"`
	Items       []models.TransactionItemDetail `json:"items"`
}
