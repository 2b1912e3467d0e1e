package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalized payment statuses reported by Status.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Error kinds for branching on gateway failures.
const (
	ErrKindNetwork  = "network"
	ErrKindStatus   = "http_status"
	ErrKindDecode   = "decode"
	ErrKindDeclined = "declined"
)

// Error is the failure result of a gateway call. Callers branch on Kind
// instead of parsing message text.
type Error struct {
	Kind       string
	Detail     string
	HTTPStatus int
	RawBody    string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("gateway: %s (%d): %s", e.Kind, e.HTTPStatus, e.Detail)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Detail)
}

type Customer struct {
	Email string
	Phone string
	Name  string
}

type InitiateRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Customer    Customer
	Reference   string
	BookingID   uint
	ReturnURL   string
	CallbackURL string
}

type InitiateResult struct {
	CheckoutURL   string
	TransactionID string
}

// VerifyResult carries the gateway's own view of a transaction. Status is the
// gateway's vocabulary, not the normalized one.
type VerifyResult struct {
	Status        string
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	PaymentMethod string
	CreatedAt     string
	UpdatedAt     string
}

// Provider is the payment gateway abstraction. Calls carry a bounded timeout
// and are never retried internally; retry policy belongs to the caller.
type Provider interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Verify(ctx context.Context, transactionID string) (*VerifyResult, error)
	// Status is a convenience projection of Verify onto the normalized
	// statuses. Unrecognized gateway statuses map to StatusPending.
	Status(ctx context.Context, transactionID string) (string, error)
}

var statusMap = map[string]string{
	"success":   StatusCompleted,
	"pending":   StatusPending,
	"failed":    StatusFailed,
	"cancelled": StatusCancelled,
}

// NormalizeStatus maps the gateway's status vocabulary onto the normalized
// statuses. Anything unrecognized maps to StatusPending so callers are never
// thrown into an unknown state.
func NormalizeStatus(s string) string {
	if mapped, ok := statusMap[strings.ToLower(s)]; ok {
		return mapped
	}
	return StatusPending
}

// SplitName splits a full name into first/last for the gateway request: first
// space-delimited token is the first name, the remainder (possibly empty) the
// last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
