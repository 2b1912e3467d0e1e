package repository

import (
	"errors"
	"time"

	"tripstay/internal/domain"
	"tripstay/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id string) (*models.Payment, error) {
	var p models.Payment
	return first(&p, r.db.Where("id = ?", id))
}

func (r *PaymentRepository) GetByBookingID(bookingID uint) (*models.Payment, error) {
	var p models.Payment
	return first(&p, r.db.Where("booking_id = ?", bookingID))
}

func (r *PaymentRepository) GetByTransactionID(txID string) (*models.Payment, error) {
	var p models.Payment
	return first(&p, r.db.Where("gateway_transaction_id = ?", txID))
}

func (r *PaymentRepository) GetByReference(ref string) (*models.Payment, error) {
	var p models.Payment
	return first(&p, r.db.Where("gateway_reference = ?", ref))
}

func first(p *models.Payment, tx *gorm.DB) (*models.Payment, error) {
	err := tx.First(p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a payment row outright. Used when replacing a failed or
// cancelled payment so the unique booking index never trips on a stale row.
func (r *PaymentRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Payment{}).Error
}

// The Mark* methods are compare-and-set transitions: the WHERE clause guards
// the source state and the rows-affected count tells the caller whether it won
// the transition. A concurrent loser degenerates to a no-op.

func (r *PaymentRepository) MarkProcessing(id, checkoutURL, txID string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(map[string]any{
			"status":                 domain.PaymentProcessing,
			"checkout_url":           checkoutURL,
			"gateway_transaction_id": txID,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) MarkCompleted(id, paymentMethod string, paidAt time.Time) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{domain.PaymentPending, domain.PaymentProcessing}).
		Updates(map[string]any{
			"status":         domain.PaymentCompleted,
			"paid_at":        paidAt,
			"payment_method": paymentMethod,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *PaymentRepository) MarkFailed(id, reason string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{domain.PaymentPending, domain.PaymentProcessing}).
		Updates(map[string]any{
			"status":         domain.PaymentFailed,
			"failure_reason": reason,
		})
	return res.RowsAffected == 1, res.Error
}

// ExpireStale cancels every pending payment created before cutoff and returns
// the number of rows affected. Safe to run repeatedly.
func (r *PaymentRepository) ExpireStale(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", domain.PaymentPending, cutoff).
		Updates(map[string]any{
			"status":         domain.PaymentCancelled,
			"failure_reason": domain.ExpiredFailureReason,
		})
	return res.RowsAffected, res.Error
}
