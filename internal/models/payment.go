package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tripstay/internal/domain"
)

// Payment is the 1:1 payment record for a booking. Status, paid_at,
// failure_reason, gateway_transaction_id and checkout_url are written only by
// the payment service.
type Payment struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	BookingID uint            `gorm:"not null;uniqueIndex" json:"booking_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency  string          `gorm:"size:3;default:'ETB'" json:"currency"`
	Status    string          `gorm:"size:20;not null;index;default:'pending'" json:"status"`

	// Gateway correlation keys. GatewayReference is ours, generated once at
	// creation; GatewayTransactionID is assigned when the gateway acknowledges
	// initiation.
	GatewayTransactionID *string `gorm:"size:255;uniqueIndex" json:"gateway_transaction_id"`
	GatewayReference     string  `gorm:"size:255;uniqueIndex;not null" json:"gateway_reference"`
	CheckoutURL          *string `gorm:"size:500" json:"checkout_url"`

	PaymentMethod *string    `gorm:"size:50" json:"payment_method"`
	FailureReason *string    `gorm:"type:text" json:"failure_reason"`
	PaidAt        *time.Time `json:"paid_at"`

	// Customer snapshot captured at initiation; independent of any account.
	CustomerEmail string `gorm:"size:255;not null" json:"customer_email"`
	CustomerPhone string `gorm:"size:20" json:"customer_phone"`
	CustomerName  string `gorm:"size:100;not null" json:"customer_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Booking Booking `gorm:"foreignKey:BookingID" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.GatewayReference == "" {
		p.GatewayReference = NewPaymentReference()
	}
	if p.Status == "" {
		p.Status = domain.PaymentPending
	}
	return nil
}

// NewPaymentReference generates a client-side transaction reference, e.g.
// "TRV-9F2C41AB".
func NewPaymentReference() string {
	hexID := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("TRV-%s", strings.ToUpper(hexID[:8]))
}
