package models

import "time"

// TransactionStatus is the closed set of borrow-transaction states. Transitions go
// through CanReturn and DeriveReturnStatus so illegal jumps cannot be expressed at
// call sites.
type TransactionStatus string

const (
	TransactionOngoing            TransactionStatus = "ongoing"
	TransactionPartiallyReturned  TransactionStatus = "partially_returned"
	TransactionCompleted          TransactionStatus = "completed"
	TransactionHasProblemPending  TransactionStatus = "has_problem_pending"
	TransactionHasProblemResolved TransactionStatus = "has_problem_resolved"
)

// CanReturn reports whether a return may still be processed against the transaction.
func (s TransactionStatus) CanReturn() bool {
	return s == TransactionOngoing || s == TransactionPartiallyReturned
}

// DeriveReturnStatus computes the post-return transaction status. outstanding is the
// number of transaction items still unreturned after the batch; hasProblem is true when
// any item in the batch came back damaged or lost.
func DeriveReturnStatus(outstanding int, hasProblem bool, payment PaymentStatus) TransactionStatus {
	switch {
	case outstanding > 0:
		return TransactionPartiallyReturned
	case hasProblem && payment == PaymentPending:
		return TransactionHasProblemPending
	case hasProblem:
		return TransactionHasProblemResolved
	default:
		return TransactionCompleted
	}
}

// PaymentStatus tracks whether fines accrued on a return have been settled.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
)

// ReturnCondition describes the state of an exemplar at return time.
type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "good"
	ConditionDamaged ReturnCondition = "damaged"
	ConditionLost    ReturnCondition = "lost"
)

// Problem reports whether the condition accrues a fine and flags the transaction.
func (c ReturnCondition) Problem() bool {
	return c == ConditionDamaged || c == ConditionLost
}

// ItemStatus maps the return condition onto the exemplar status.
func (c ReturnCondition) ItemStatus() ItemStatus {
	switch c {
	case ConditionDamaged:
		return ItemStatusDamaged
	case ConditionLost:
		return ItemStatusLost
	default:
		return ItemStatusAvailable
	}
}

// ResolveAction distinguishes how a pending fine was settled.
type ResolveAction string

const (
	ResolvePaid     ResolveAction = "paid"
	ResolveReplaced ResolveAction = "replaced"
)

// Transaction represents one borrow event for one student covering 1..N items.
// Officer identity is a snapshot captured at creation/return, not a live join.
type Transaction struct {
	ID            string            `db:"id" json:"id"`
	StudentID     string            `db:"student_id" json:"student_id"`
	OfficerID     *string           `db:"officer_id" json:"officer_id,omitempty"`
	OfficerName   string            `db:"officer_name" json:"officer_name"`
	OfficerTitle  string            `db:"officer_title" json:"officer_title"`
	Type          string            `db:"type" json:"type"`
	BorrowDate    time.Time         `db:"borrow_date" json:"borrow_date"`
	DueDate       *time.Time        `db:"due_date" json:"due_date,omitempty"`
	ReturnDate    *time.Time        `db:"return_date" json:"return_date,omitempty"`
	Status        TransactionStatus `db:"status" json:"status"`
	ReceiptNumber string            `db:"receipt_number" json:"receipt_number"`
	Barcode       string            `db:"barcode" json:"barcode"`
	TotalFine     int64             `db:"total_fine" json:"total_fine"`
	PaymentStatus *PaymentStatus    `db:"payment_status" json:"payment_status,omitempty"`
	BranchID      string            `db:"branch_id" json:"branch_id"`
	Notes         string            `db:"notes" json:"notes"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// TransactionItem links a transaction to one exemplar. Rows are created at borrow time
// and mutated at return/resolution time, never deleted.
type TransactionItem struct {
	ID             string          `db:"id" json:"id"`
	TransactionID  string          `db:"transaction_id" json:"transaction_id"`
	ItemID         string          `db:"item_id" json:"item_id"`
	Condition      ReturnCondition `db:"condition" json:"condition"`
	Fine           int64           `db:"fine" json:"fine"`
	Notes          string          `db:"notes" json:"notes"`
	PaymentStatus  *PaymentStatus  `db:"payment_status" json:"payment_status,omitempty"`
	ReturnedAt     *time.Time      `db:"returned_at" json:"returned_at,omitempty"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	Resolved       bool            `db:"resolved" json:"resolved"`
	ResolvedAt     *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedAction *ResolveAction  `db:"resolved_action" json:"resolved_action,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// TransactionItemDetail joins exemplar and book context for receipt/detail views.
type TransactionItemDetail struct {
	TransactionItem
	UniqueCode *string `db:"unique_code" json:"unique_code,omitempty"`
	ItemStatus *string `db:"item_status" json:"item_status,omitempty"`
	BookID     *string `db:"book_id" json:"book_id,omitempty"`
	BookTitle  *string `db:"book_title" json:"book_title,omitempty"`
}

// TransactionDetail augments a transaction with the student it belongs to.
type TransactionDetail struct {
	Transaction
	StudentName  *string `db:"student_name" json:"student_name,omitempty"`
	StudentNIS   *string `db:"student_nis" json:"student_nis,omitempty"`
	StudentClass *string `db:"student_class" json:"student_class,omitempty"`
}

// TransactionFilter captures list parameters.
type TransactionFilter struct {
	StudentID string
	Status    []TransactionStatus
	Limit     int
	Offset    int
}
