package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tripstay/config"
	"tripstay/internal/domain"
	"tripstay/internal/models"
	"tripstay/internal/repository"
	"tripstay/pkg/gateway"
)

// Notifier is the async side-effect sink for payment transitions. Enqueueing
// never blocks and never fails the triggering operation.
type Notifier interface {
	PaymentConfirmed(paymentID string)
	PaymentFailed(paymentID, reason string)
}

// PaymentService owns every payment status transition. Client-initiated
// verification and gateway webhooks converge on the same transition rule, and
// the repository's compare-and-set updates keep racing transitions from
// double-firing side effects.
type PaymentService struct {
	payments   *repository.PaymentRepository
	bookings   *repository.BookingRepository
	gw         gateway.Provider
	notifier   Notifier
	currency   string
	staleAfter time.Duration
	log        *zap.Logger
}

func NewPaymentService(
	payments *repository.PaymentRepository,
	bookings *repository.BookingRepository,
	gw gateway.Provider,
	notifier Notifier,
	cfg *config.PaymentConfig,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:   payments,
		bookings:   bookings,
		gw:         gw,
		notifier:   notifier,
		currency:   cfg.Currency,
		staleAfter: cfg.StaleAfter,
		log:        log,
	}
}

type InitiateParams struct {
	BookingID     uint
	CustomerEmail string
	CustomerPhone string
	CustomerName  string
	ReturnURL     string
	WebhookURL    string
}

type InitiateOutcome struct {
	PaymentID   string
	CheckoutURL string
	Reference   string
	Amount      decimal.Decimal
	Currency    string
}

// InitiatePayment creates the payment record for a booking and starts the
// gateway checkout. A completed or processing predecessor is a conflict; a
// failed or cancelled one is deleted and replaced with a fresh record.
func (s *PaymentService) InitiatePayment(ctx context.Context, params InitiateParams) (*InitiateOutcome, error) {
	booking, err := s.bookings.GetByID(params.BookingID)
	if err != nil {
		return nil, err
	}

	existing, err := s.payments.GetByBookingID(booking.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if existing.Status == domain.PaymentCompleted || existing.Status == domain.PaymentProcessing {
			return nil, domain.ErrPaymentConflict
		}
		if err := s.payments.Delete(existing.ID); err != nil {
			return nil, err
		}
	}

	amount := booking.TotalAmount
	if amount.IsZero() {
		amount = booking.CalculateTotal(booking.Listing.PricePerNight)
	}

	payment := &models.Payment{
		BookingID:     booking.ID,
		Amount:        amount,
		Currency:      s.currency,
		Status:        domain.PaymentPending,
		CustomerEmail: params.CustomerEmail,
		CustomerPhone: params.CustomerPhone,
		CustomerName:  params.CustomerName,
	}
	if err := s.payments.Create(payment); err != nil {
		return nil, err
	}

	res, err := s.gw.Initiate(ctx, gateway.InitiateRequest{
		Amount:    amount,
		Currency:  s.currency,
		Reference: payment.GatewayReference,
		BookingID: booking.ID,
		Customer: gateway.Customer{
			Email: params.CustomerEmail,
			Phone: params.CustomerPhone,
			Name:  params.CustomerName,
		},
		ReturnURL:   params.ReturnURL,
		CallbackURL: params.WebhookURL,
	})
	if err != nil {
		// Initiation failure is terminal for this payment attempt; the record
		// stays behind as failed and a later initiate call replaces it.
		reason := gatewayErrorText(err)
		if _, markErr := s.payments.MarkFailed(payment.ID, reason); markErr != nil {
			s.log.Error("mark failed after gateway reject", zap.String("payment_id", payment.ID), zap.Error(markErr))
		}
		s.log.Warn("payment initiation rejected",
			zap.String("payment_id", payment.ID),
			zap.Uint("booking_id", booking.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if _, err := s.payments.MarkProcessing(payment.ID, res.CheckoutURL, res.TransactionID); err != nil {
		return nil, err
	}
	s.log.Info("payment initiated",
		zap.String("payment_id", payment.ID),
		zap.Uint("booking_id", booking.ID),
		zap.String("reference", payment.GatewayReference),
	)
	return &InitiateOutcome{
		PaymentID:   payment.ID,
		CheckoutURL: res.CheckoutURL,
		Reference:   payment.GatewayReference,
		Amount:      amount,
		Currency:    s.currency,
	}, nil
}

// VerifyPayment re-checks a payment with the gateway and applies the shared
// transition rule. Safe to call repeatedly: once the payment is terminal the
// round-trip still happens but no side effect fires again. A gateway outage
// leaves state untouched so the caller can retry.
func (s *PaymentService) VerifyPayment(ctx context.Context, transactionID string) (*PaymentView, error) {
	payment, err := s.payments.GetByTransactionID(transactionID)
	if err != nil {
		return nil, err
	}
	res, err := s.gw.Verify(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	s.applyVerification(payment, res)
	return s.view(payment.ID)
}

// WebhookOutcome distinguishes an unknown transaction from a processed one;
// malformed payloads never reach the service.
type WebhookOutcome int

const (
	WebhookProcessed WebhookOutcome = iota
	WebhookNotFound
)

// HandleWebhook processes a gateway push for the given transaction reference.
// The payload's own status field is never trusted: authenticity is established
// by an independent verify round-trip before any transition is applied.
func (s *PaymentService) HandleWebhook(ctx context.Context, transactionRef string) (WebhookOutcome, error) {
	payment, err := s.payments.GetByTransactionID(transactionRef)
	if errors.Is(err, domain.ErrNotFound) {
		payment, err = s.payments.GetByReference(transactionRef)
	}
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("webhook for unknown transaction", zap.String("tx_ref", transactionRef))
		return WebhookNotFound, nil
	}
	if err != nil {
		return WebhookNotFound, err
	}
	res, err := s.gw.Verify(ctx, transactionRef)
	if err != nil {
		return WebhookProcessed, err
	}
	s.applyVerification(payment, res)
	s.log.Info("webhook processed",
		zap.String("payment_id", payment.ID),
		zap.String("gateway_status", res.Status),
	)
	return WebhookProcessed, nil
}

// GetStatus returns the stored payment view, opportunistically refreshing
// from the gateway while the payment is still pending or processing. A
// gateway outage during the refresh is logged and the stored view returned;
// not-found is decided solely by the local lookup.
func (s *PaymentService) GetStatus(ctx context.Context, paymentID string) (*PaymentView, error) {
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if (payment.Status == domain.PaymentPending || payment.Status == domain.PaymentProcessing) &&
		payment.GatewayTransactionID != nil {
		res, err := s.gw.Verify(ctx, *payment.GatewayTransactionID)
		if err != nil {
			s.log.Warn("status refresh skipped, gateway unavailable",
				zap.String("payment_id", payment.ID), zap.Error(err))
		} else {
			s.applyVerification(payment, res)
		}
	}
	return s.view(payment.ID)
}

// ExpireStalePayments cancels pending payments older than the staleness
// window. Idempotent; payments already past pending are untouched.
func (s *PaymentService) ExpireStalePayments(now time.Time) (int64, error) {
	count, err := s.payments.ExpireStale(now.Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("expired stale payments", zap.Int64("count", count))
	}
	return count, nil
}

// applyVerification is the single transition rule both verification and
// webhook handling converge on. Side effects fire only when the CAS reports
// this caller won the transition.
func (s *PaymentService) applyVerification(p *models.Payment, res *gateway.VerifyResult) {
	switch gateway.NormalizeStatus(res.Status) {
	case gateway.StatusCompleted:
		won, err := s.payments.MarkCompleted(p.ID, res.PaymentMethod, time.Now())
		if err != nil {
			s.log.Error("complete transition", zap.String("payment_id", p.ID), zap.Error(err))
			return
		}
		if won {
			s.log.Info("payment completed", zap.String("payment_id", p.ID))
			s.notifier.PaymentConfirmed(p.ID)
		}
	case gateway.StatusFailed, gateway.StatusCancelled:
		reason := "gateway status: " + res.Status
		won, err := s.payments.MarkFailed(p.ID, reason)
		if err != nil {
			s.log.Error("fail transition", zap.String("payment_id", p.ID), zap.Error(err))
			return
		}
		if won {
			s.log.Info("payment failed", zap.String("payment_id", p.ID), zap.String("reason", reason))
			s.notifier.PaymentFailed(p.ID, reason)
		}
	default:
		// Still pending at the gateway; nothing to transition.
	}
}

func gatewayErrorText(err error) string {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) && gwErr.Detail != "" {
		return gwErr.Detail
	}
	return err.Error()
}
