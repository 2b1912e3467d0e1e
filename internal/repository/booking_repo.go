package repository

import (
	"errors"

	"tripstay/internal/domain"
	"tripstay/internal/models"

	"gorm.io/gorm"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(b *models.Booking) error {
	return r.db.Create(b).Error
}

func (r *BookingRepository) GetByID(id uint) (*models.Booking, error) {
	var b models.Booking
	err := r.db.Preload("Listing").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) List() ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.Order("created_at DESC").Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) Update(b *models.Booking) error {
	return r.db.Save(b).Error
}
