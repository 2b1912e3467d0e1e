package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentView is the normalized payment shape returned to API callers.
type PaymentView struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
	PaymentMethod *string         `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	PaidAt        *time.Time      `json:"paid_at"`
	Booking       BookingDetails  `json:"booking_details"`
}

type BookingDetails struct {
	BookingID    uint      `json:"booking_id"`
	ListingTitle string    `json:"listing_title"`
	CheckIn      time.Time `json:"check_in"`
	CheckOut     time.Time `json:"check_out"`
	Guests       int       `json:"guests"`
}

// view re-reads the payment so the caller always sees post-transition state.
func (s *PaymentService) view(paymentID string) (*PaymentView, error) {
	p, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	v := &PaymentView{
		ID:            p.ID,
		Status:        p.Status,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Reference:     p.GatewayReference,
		PaymentMethod: p.PaymentMethod,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		PaidAt:        p.PaidAt,
	}
	if booking, err := s.bookings.GetByID(p.BookingID); err == nil {
		v.Booking = BookingDetails{
			BookingID:    booking.ID,
			ListingTitle: booking.Listing.Title,
			CheckIn:      booking.CheckIn,
			CheckOut:     booking.CheckOut,
			Guests:       booking.Guests,
		}
	}
	return v, nil
}
