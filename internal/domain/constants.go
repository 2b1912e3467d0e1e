package domain

import "errors"

// Payment statuses. Completed, cancelled and refunded are terminal; failed is
// semi-terminal (re-initiation replaces the record instead of mutating it).
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentCancelled  = "cancelled"
	PaymentRefunded   = "refunded"
)

// Reason recorded when the expiry sweep cancels a stale pending payment.
const ExpiredFailureReason = "expired"

var (
	ErrNotFound = errors.New("not found")
	// ErrPaymentConflict: the booking already has a payment in a blocking
	// state (completed or processing).
	ErrPaymentConflict = errors.New("payment already exists for this booking")
)
