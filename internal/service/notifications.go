package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tripstay/internal/domain"
	"tripstay/internal/models"
	"tripstay/internal/repository"
	"tripstay/pkg/mailer"
)

const (
	kindPaymentConfirmed = "payment_confirmed"
	kindPaymentFailed    = "payment_failed"
	kindBookingReminder  = "booking_reminder"
)

// DispatchResult is the terminal outcome of one notification.
type DispatchResult struct {
	Status string // "delivered", "skipped", "failed"
	Detail string
}

// RetryPolicy governs redelivery of a single notification: the first attempt
// plus MaxRetries retries, delayed InitialDelay, InitialDelay*Multiplier, ...
type RetryPolicy struct {
	MaxRetries   uint64
	InitialDelay time.Duration
	Multiplier   float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialDelay: time.Second, Multiplier: 2}
}

type notificationJob struct {
	kind       string
	paymentID  string
	bookingID  uint
	reason     string
	daysBefore int
}

// NotificationDispatcher delivers transactional email off the request path.
// It is a read-only consumer of payment state; delivery failures are logged
// and never surfaced to the payment API caller.
type NotificationDispatcher struct {
	payments *repository.PaymentRepository
	bookings *repository.BookingRepository
	mail     mailer.Sender
	policy   RetryPolicy
	jobs     chan notificationJob
	wg       sync.WaitGroup
	log      *zap.Logger
}

func NewNotificationDispatcher(
	payments *repository.PaymentRepository,
	bookings *repository.BookingRepository,
	mail mailer.Sender,
	policy RetryPolicy,
	queueSize int,
	log *zap.Logger,
) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &NotificationDispatcher{
		payments: payments,
		bookings: bookings,
		mail:     mail,
		policy:   policy,
		jobs:     make(chan notificationJob, queueSize),
		log:      log,
	}
}

// Start launches the worker pool.
func (d *NotificationDispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				res := d.dispatch(job)
				if res.Status == "failed" {
					d.log.Error("notification delivery failed",
						zap.String("kind", job.kind),
						zap.String("payment_id", job.paymentID),
						zap.Uint("booking_id", job.bookingID),
						zap.String("detail", res.Detail),
					)
				}
			}
		}()
	}
}

// Stop drains the queue and waits for in-flight deliveries.
func (d *NotificationDispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *NotificationDispatcher) PaymentConfirmed(paymentID string) {
	d.enqueue(notificationJob{kind: kindPaymentConfirmed, paymentID: paymentID})
}

func (d *NotificationDispatcher) PaymentFailed(paymentID, reason string) {
	d.enqueue(notificationJob{kind: kindPaymentFailed, paymentID: paymentID, reason: reason})
}

func (d *NotificationDispatcher) BookingReminder(bookingID uint, daysBefore int) {
	d.enqueue(notificationJob{kind: kindBookingReminder, bookingID: bookingID, daysBefore: daysBefore})
}

// enqueue never blocks; a full queue drops the job with a log line rather
// than failing or stalling the payment transition that triggered it.
func (d *NotificationDispatcher) enqueue(job notificationJob) {
	select {
	case d.jobs <- job:
	default:
		d.log.Error("notification queue full, dropping",
			zap.String("kind", job.kind),
			zap.String("payment_id", job.paymentID),
			zap.Uint("booking_id", job.bookingID),
		)
	}
}

func (d *NotificationDispatcher) dispatch(job notificationJob) DispatchResult {
	switch job.kind {
	case kindPaymentConfirmed:
		return d.sendPaymentConfirmation(job.paymentID)
	case kindPaymentFailed:
		return d.sendPaymentFailure(job.paymentID, job.reason)
	case kindBookingReminder:
		return d.sendBookingReminder(job.bookingID, job.daysBefore)
	}
	return DispatchResult{Status: "failed", Detail: "unknown notification kind: " + job.kind}
}

func (d *NotificationDispatcher) sendPaymentConfirmation(paymentID string) DispatchResult {
	payment, booking, res := d.loadPayment(paymentID)
	if res != nil {
		return *res
	}
	subject := fmt.Sprintf("Payment Confirmation - Booking #%d", booking.ID)
	method := "N/A"
	if payment.PaymentMethod != nil && *payment.PaymentMethod != "" {
		method = *payment.PaymentMethod
	}
	paidAt := ""
	if payment.PaidAt != nil {
		paidAt = payment.PaidAt.Format(time.RFC1123)
	}
	body := fmt.Sprintf(`Dear %s,

Thank you for your payment! Your booking has been confirmed.

Booking Details:
- Property: %s
- Address: %s
- Check-in: %s
- Check-out: %s
- Guests: %d
- Total Amount Paid: %s %s

Payment Details:
- Payment ID: %s
- Reference: %s
- Payment Method: %s
- Paid At: %s

We look forward to hosting you!

Best regards,
TripStay Team
`,
		payment.CustomerName,
		booking.Listing.Title, booking.Listing.Address,
		booking.CheckIn.Format("2006-01-02"), booking.CheckOut.Format("2006-01-02"),
		booking.Guests, payment.Amount.StringFixed(2), payment.Currency,
		payment.ID, payment.GatewayReference, method, paidAt,
	)
	return d.sendWithRetry(payment.CustomerEmail, subject, body)
}

func (d *NotificationDispatcher) sendPaymentFailure(paymentID, reason string) DispatchResult {
	payment, booking, res := d.loadPayment(paymentID)
	if res != nil {
		return *res
	}
	if reason == "" {
		reason = "Payment processing failed"
	}
	subject := fmt.Sprintf("Payment Failed - Booking #%d", booking.ID)
	body := fmt.Sprintf(`Dear %s,

We're sorry to inform you that your payment for the following booking could not be processed:

Booking Details:
- Property: %s
- Check-in: %s
- Check-out: %s
- Amount: %s %s

Reason: %s

Please try again or contact our support team if you need assistance.

Best regards,
TripStay Team
`,
		payment.CustomerName,
		booking.Listing.Title,
		booking.CheckIn.Format("2006-01-02"), booking.CheckOut.Format("2006-01-02"),
		payment.Amount.StringFixed(2), payment.Currency, reason,
	)
	return d.sendWithRetry(payment.CustomerEmail, subject, body)
}

func (d *NotificationDispatcher) sendBookingReminder(bookingID uint, daysBefore int) DispatchResult {
	booking, err := d.bookings.GetByID(bookingID)
	if err != nil {
		return DispatchResult{Status: "failed", Detail: "booking not found"}
	}
	payment, err := d.payments.GetByBookingID(bookingID)
	if err != nil || payment.Status != domain.PaymentCompleted {
		d.log.Info("reminder skipped, no completed payment", zap.Uint("booking_id", bookingID))
		return DispatchResult{Status: "skipped", Detail: "no completed payment found"}
	}
	if daysBefore <= 0 {
		daysBefore = 1
	}
	subject := fmt.Sprintf("Booking Reminder - Check-in in %d %s", daysBefore, dayWord(daysBefore))
	body := fmt.Sprintf(`Dear %s,

This is a friendly reminder about your upcoming stay!

Booking Details:
- Property: %s
- Address: %s
- Check-in: %s
- Check-out: %s
- Guests: %d

Your check-in is in %d %s. We're excited to host you!

Safe travels,
TripStay Team
`,
		payment.CustomerName,
		booking.Listing.Title, booking.Listing.Address,
		booking.CheckIn.Format("2006-01-02"), booking.CheckOut.Format("2006-01-02"),
		booking.Guests, daysBefore, dayWord(daysBefore),
	)
	return d.sendWithRetry(payment.CustomerEmail, subject, body)
}

func (d *NotificationDispatcher) loadPayment(paymentID string) (*models.Payment, *models.Booking, *DispatchResult) {
	payment, err := d.payments.GetByID(paymentID)
	if err != nil {
		return nil, nil, &DispatchResult{Status: "failed", Detail: "payment not found"}
	}
	booking, err := d.bookings.GetByID(payment.BookingID)
	if err != nil {
		return nil, nil, &DispatchResult{Status: "failed", Detail: "booking not found"}
	}
	return payment, booking, nil
}

func (d *NotificationDispatcher) sendWithRetry(to, subject, body string) DispatchResult {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.policy.InitialDelay
	bo.Multiplier = d.policy.Multiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = time.Hour
	bo.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := d.mail.Send(to, subject, body); err != nil {
			d.log.Warn("email send attempt failed",
				zap.String("to", to), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, d.policy.MaxRetries))
	if err != nil {
		return DispatchResult{Status: "failed", Detail: err.Error()}
	}
	return DispatchResult{Status: "delivered"}
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
