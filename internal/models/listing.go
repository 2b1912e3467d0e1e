package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Listing struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Title         string          `gorm:"size:200;not null" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	PricePerNight decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_per_night"`
	Address       string          `gorm:"size:255" json:"address"`
	HostName      string          `gorm:"size:100" json:"host_name"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

type Review struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ListingID  uint      `gorm:"not null;index;uniqueIndex:idx_reviews_listing_author" json:"listing_id"`
	AuthorName string    `gorm:"size:100;not null;uniqueIndex:idx_reviews_listing_author" json:"author_name"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    string    `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time `json:"created_at"`

	Listing Listing `gorm:"foreignKey:ListingID" json:"-"`
}

func (Review) TableName() string {
	return "reviews"
}
