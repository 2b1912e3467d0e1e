package repository

import (
	"errors"

	"tripstay/internal/domain"
	"tripstay/internal/models"

	"gorm.io/gorm"
)

type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(l *models.Listing) error {
	return r.db.Create(l).Error
}

func (r *ListingRepository) GetByID(id uint) (*models.Listing, error) {
	var l models.Listing
	err := r.db.First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepository) List() ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.Order("created_at DESC").Find(&listings).Error
	return listings, err
}

func (r *ListingRepository) Update(l *models.Listing) error {
	return r.db.Save(l).Error
}

func (r *ListingRepository) CreateReview(rev *models.Review) error {
	return r.db.Create(rev).Error
}

func (r *ListingRepository) ListReviews(listingID uint) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.Where("listing_id = ?", listingID).Order("created_at DESC").Find(&reviews).Error
	return reviews, err
}
