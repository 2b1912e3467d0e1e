package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"not null;index" json:"listing_id"`
	GuestName string    `gorm:"size:100;not null" json:"guest_name"`
	CheckIn   time.Time `gorm:"not null" json:"check_in"`
	CheckOut  time.Time `gorm:"not null" json:"check_out"`
	Guests    int       `gorm:"not null" json:"guests"`
	// TotalAmount may be left zero at creation; the payment path recomputes it
	// from nights x nightly rate.
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Listing Listing `gorm:"foreignKey:ListingID" json:"-"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// CalculateTotal returns nights x price per night for the given listing.
func (b *Booking) CalculateTotal(pricePerNight decimal.Decimal) decimal.Decimal {
	nights := b.Nights()
	if nights <= 0 {
		return decimal.Zero
	}
	return pricePerNight.Mul(decimal.NewFromInt(int64(nights)))
}
