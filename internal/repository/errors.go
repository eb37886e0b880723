package repository

import "errors"

// Sentinel errors surfaced by multi-step repository transactions. Services translate
// these into the API error taxonomy.
var (
	// ErrItemUnavailable is returned when a scan code resolves to no lendable exemplar,
	// including the case where a concurrent borrow claimed it first.
	ErrItemUnavailable = errors.New("item not available")

	// ErrTransactionClosed is returned when a return is attempted against a transaction
	// that is no longer ongoing or partially returned.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrTransactionNotPending is returned when resolve-pending targets a transaction
	// that is not awaiting payment.
	ErrTransactionNotPending = errors.New("transaction has no pending payment")

	// ErrInsufficientStock is returned when a stock reduction or inventory-out movement
	// exceeds what is available.
	ErrInsufficientStock = errors.New("insufficient stock")
)
