package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tripstay/config"
	"tripstay/internal/domain"
	"tripstay/internal/models"
	"tripstay/internal/repository"
	"tripstay/pkg/gateway"
)

type fakeGateway struct {
	initiateRes *gateway.InitiateResult
	initiateErr error
	verifyRes   *gateway.VerifyResult
	verifyErr   error
	verifyCalls int
}

func (f *fakeGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	if f.initiateRes != nil {
		return f.initiateRes, nil
	}
	return &gateway.InitiateResult{CheckoutURL: "https://pay/x", TransactionID: req.Reference}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, txID string) (*gateway.VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyRes, nil
}

func (f *fakeGateway) Status(ctx context.Context, txID string) (string, error) {
	res, err := f.Verify(ctx, txID)
	if err != nil {
		return "", err
	}
	return gateway.NormalizeStatus(res.Status), nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []string
	failed    []string
}

func (n *recordingNotifier) PaymentConfirmed(paymentID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, paymentID)
}

func (n *recordingNotifier) PaymentFailed(paymentID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, paymentID)
}

type fixture struct {
	db       *gorm.DB
	payments *repository.PaymentRepository
	bookings *repository.BookingRepository
	gw       *fakeGateway
	notifier *recordingNotifier
	svc      *PaymentService
	booking  *models.Booking
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Listing{}, &models.Review{}, &models.Booking{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	listing := &models.Listing{
		Title:         "Lakeside Cottage",
		PricePerNight: decimal.NewFromInt(50),
		Address:       "Bahir Dar",
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatal(err)
	}
	booking := &models.Booking{
		ListingID: listing.ID,
		GuestName: "Abebe Bikila",
		CheckIn:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		Guests:    2,
	}
	if err := db.Create(booking).Error; err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		db:       db,
		payments: repository.NewPaymentRepository(db),
		bookings: repository.NewBookingRepository(db),
		gw:       &fakeGateway{},
		notifier: &recordingNotifier{},
		booking:  booking,
	}
	cfg := &config.PaymentConfig{Currency: "ETB", StaleAfter: 24 * time.Hour}
	f.svc = NewPaymentService(f.payments, f.bookings, f.gw, f.notifier, cfg, zap.NewNop())
	return f
}

func (f *fixture) initiate(t *testing.T) *InitiateOutcome {
	t.Helper()
	out, err := f.svc.InitiatePayment(context.Background(), InitiateParams{
		BookingID:     f.booking.ID,
		CustomerEmail: "guest@example.com",
		CustomerName:  "Abebe Bikila",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return out
}

func verifyResult(status string) *gateway.VerifyResult {
	return &gateway.VerifyResult{
		Status:        status,
		Amount:        decimal.NewFromInt(100),
		Currency:      "ETB",
		PaymentMethod: "telebirr",
	}
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)

	if out.CheckoutURL != "https://pay/x" {
		t.Errorf("checkout_url = %s", out.CheckoutURL)
	}
	// Amount recomputed from 2 nights x 50/night since the booking carried no
	// stored total.
	if !out.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("amount = %s", out.Amount)
	}
	if out.Currency != "ETB" {
		t.Errorf("currency = %s", out.Currency)
	}

	p, err := f.payments.GetByID(out.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != domain.PaymentProcessing {
		t.Errorf("status = %s", p.Status)
	}
	if p.CheckoutURL == nil || *p.CheckoutURL != "https://pay/x" {
		t.Errorf("stored checkout_url = %v", p.CheckoutURL)
	}
}

func TestInitiatePaymentUsesStoredTotal(t *testing.T) {
	f := newFixture(t)
	f.db.Model(f.booking).Update("total_amount", decimal.NewFromInt(375))

	out := f.initiate(t)
	if !out.Amount.Equal(decimal.NewFromInt(375)) {
		t.Errorf("amount = %s, want stored total 375", out.Amount)
	}
}

func TestInitiatePaymentConflict(t *testing.T) {
	f := newFixture(t)
	first := f.initiate(t)

	_, err := f.svc.InitiatePayment(context.Background(), InitiateParams{
		BookingID:     f.booking.ID,
		CustomerEmail: "guest@example.com",
		CustomerName:  "Abebe Bikila",
	})
	if !errors.Is(err, domain.ErrPaymentConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var count int64
	f.db.Model(&models.Payment{}).Where("booking_id = ?", f.booking.ID).Count(&count)
	if count != 1 {
		t.Errorf("payment count = %d, want 1", count)
	}
	if p, _ := f.payments.GetByID(first.PaymentID); p.Status != domain.PaymentProcessing {
		t.Errorf("original payment mutated to %s", p.Status)
	}
}

func TestInitiatePaymentReplacesFailedPredecessor(t *testing.T) {
	f := newFixture(t)
	f.gw.initiateErr = &gateway.Error{Kind: gateway.ErrKindDeclined, Detail: "Invalid currency"}

	_, err := f.svc.InitiatePayment(context.Background(), InitiateParams{
		BookingID:     f.booking.ID,
		CustomerEmail: "guest@example.com",
		CustomerName:  "Abebe Bikila",
	})
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	failed, err := f.payments.GetByBookingID(f.booking.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != domain.PaymentFailed {
		t.Errorf("status = %s", failed.Status)
	}
	if failed.FailureReason == nil || *failed.FailureReason != "Invalid currency" {
		t.Errorf("failure_reason = %v", failed.FailureReason)
	}

	// Re-initiation deletes the failed record and creates a fresh one.
	f.gw.initiateErr = nil
	out := f.initiate(t)
	if out.PaymentID == failed.ID {
		t.Error("expected a fresh payment record, not resurrection")
	}
	if _, err := f.payments.GetByID(failed.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("failed predecessor should be deleted, got %v", err)
	}
}

func TestVerifyPaymentCompletes(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyRes = verifyResult("success")

	view, err := f.svc.VerifyPayment(context.Background(), out.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.PaymentCompleted {
		t.Errorf("status = %s", view.Status)
	}
	if view.PaidAt == nil {
		t.Error("paid_at not set")
	}
	if !view.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("amount changed: %s", view.Amount)
	}
	if view.Booking.ListingTitle != "Lakeside Cottage" {
		t.Errorf("booking details = %+v", view.Booking)
	}
	if len(f.notifier.confirmed) != 1 {
		t.Errorf("confirmation notifications = %d, want 1", len(f.notifier.confirmed))
	}
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyRes = verifyResult("success")

	first, err := f.svc.VerifyPayment(context.Background(), out.Reference)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.VerifyPayment(context.Background(), out.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != second.Status || !first.PaidAt.Equal(*second.PaidAt) {
		t.Errorf("views differ: %+v vs %+v", first, second)
	}
	// The second call still does the verify round-trip but fires no side
	// effects.
	if f.gw.verifyCalls != 2 {
		t.Errorf("verify calls = %d", f.gw.verifyCalls)
	}
	if len(f.notifier.confirmed) != 1 {
		t.Errorf("confirmation notifications = %d, want exactly 1", len(f.notifier.confirmed))
	}
}

func TestVerifyPaymentFailedStatus(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyRes = verifyResult("failed")

	view, err := f.svc.VerifyPayment(context.Background(), out.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.PaymentFailed {
		t.Errorf("status = %s", view.Status)
	}
	p, _ := f.payments.GetByID(out.PaymentID)
	if p.FailureReason == nil || *p.FailureReason != "gateway status: failed" {
		t.Errorf("failure_reason = %v", p.FailureReason)
	}
	if len(f.notifier.failed) != 1 {
		t.Errorf("failure notifications = %d, want 1", len(f.notifier.failed))
	}

	// Repeating the verify must not re-fire the failure notification.
	if _, err := f.svc.VerifyPayment(context.Background(), out.Reference); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.failed) != 1 {
		t.Errorf("failure notifications after re-verify = %d", len(f.notifier.failed))
	}
}

func TestVerifyPaymentUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyPayment(context.Background(), "unknown-ref")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifyPaymentGatewayOutageLeavesState(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyErr = &gateway.Error{Kind: gateway.ErrKindNetwork, Detail: "connection refused"}

	_, err := f.svc.VerifyPayment(context.Background(), out.Reference)
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	p, _ := f.payments.GetByID(out.PaymentID)
	if p.Status != domain.PaymentProcessing {
		t.Errorf("transient outage corrupted state: %s", p.Status)
	}
	if len(f.notifier.failed)+len(f.notifier.confirmed) != 0 {
		t.Error("no notifications expected on outage")
	}
}

func TestHandleWebhookUnknownReference(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)

	outcome, err := f.svc.HandleWebhook(context.Background(), "unknown-ref")
	if err != nil {
		t.Fatal(err)
	}
	if outcome != WebhookNotFound {
		t.Errorf("outcome = %v", outcome)
	}
	if f.gw.verifyCalls != 0 {
		t.Error("unknown reference must not reach the gateway")
	}
	p, _ := f.payments.GetByID(out.PaymentID)
	if p.Status != domain.PaymentProcessing {
		t.Errorf("payment mutated: %s", p.Status)
	}
}

func TestHandleWebhookReVerifiesWithGateway(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	// The webhook path must establish status through its own verify
	// round-trip, whatever the pushed payload claimed.
	f.gw.verifyRes = verifyResult("success")

	outcome, err := f.svc.HandleWebhook(context.Background(), out.Reference)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != WebhookProcessed {
		t.Errorf("outcome = %v", outcome)
	}
	if f.gw.verifyCalls != 1 {
		t.Errorf("verify calls = %d, want 1", f.gw.verifyCalls)
	}
	p, _ := f.payments.GetByID(out.PaymentID)
	if p.Status != domain.PaymentCompleted {
		t.Errorf("status = %s", p.Status)
	}
	if len(f.notifier.confirmed) != 1 {
		t.Errorf("confirmations = %d", len(f.notifier.confirmed))
	}
}

func TestConcurrentVerifyAndWebhookSingleNotification(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyRes = verifyResult("success")

	// Verify then webhook on the same payment: the second transition into
	// completed loses the CAS and must not double-dispatch.
	if _, err := f.svc.VerifyPayment(context.Background(), out.Reference); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.HandleWebhook(context.Background(), out.Reference); err != nil {
		t.Fatal(err)
	}
	if len(f.notifier.confirmed) != 1 {
		t.Errorf("confirmations = %d, want exactly 1", len(f.notifier.confirmed))
	}
}

func TestGetStatusRefreshesPendingPayment(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyRes = verifyResult("success")

	view, err := f.svc.GetStatus(context.Background(), out.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.PaymentCompleted {
		t.Errorf("status = %s", view.Status)
	}
	if f.gw.verifyCalls != 1 {
		t.Errorf("verify calls = %d", f.gw.verifyCalls)
	}
}

func TestGetStatusGatewayOutageReturnsStoredView(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyErr = &gateway.Error{Kind: gateway.ErrKindNetwork, Detail: "timeout"}

	view, err := f.svc.GetStatus(context.Background(), out.PaymentID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != domain.PaymentProcessing {
		t.Errorf("status = %s", view.Status)
	}
}

func TestGetStatusTerminalSkipsGateway(t *testing.T) {
	f := newFixture(t)
	out := f.initiate(t)
	f.gw.verifyRes = verifyResult("success")
	if _, err := f.svc.VerifyPayment(context.Background(), out.Reference); err != nil {
		t.Fatal(err)
	}
	f.gw.verifyCalls = 0

	if _, err := f.svc.GetStatus(context.Background(), out.PaymentID); err != nil {
		t.Fatal(err)
	}
	if f.gw.verifyCalls != 0 {
		t.Error("completed payment must not be re-verified by the status endpoint")
	}
}

func TestExpireStalePaymentsBoundary(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &models.Payment{
		BookingID:     f.booking.ID,
		Amount:        decimal.NewFromInt(100),
		CustomerEmail: "guest@example.com",
		CustomerName:  "Abebe Bikila",
	}
	if err := f.db.Create(p).Error; err != nil {
		t.Fatal(err)
	}
	f.db.Model(p).Update("created_at", created)

	// At T+23h59m the payment is inside the window and survives.
	count, err := f.svc.ExpireStalePayments(created.Add(23*time.Hour + 59*time.Minute))
	if err != nil || count != 0 {
		t.Fatalf("early sweep count=%d err=%v", count, err)
	}
	got, _ := f.payments.GetByID(p.ID)
	if got.Status != domain.PaymentPending {
		t.Errorf("status = %s", got.Status)
	}

	// At T+24h+1s it is stale and gets cancelled.
	count, err = f.svc.ExpireStalePayments(created.Add(24*time.Hour + time.Second))
	if err != nil || count != 1 {
		t.Fatalf("late sweep count=%d err=%v", count, err)
	}
	got, _ = f.payments.GetByID(p.ID)
	if got.Status != domain.PaymentCancelled {
		t.Errorf("status = %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != domain.ExpiredFailureReason {
		t.Errorf("failure_reason = %v", got.FailureReason)
	}
}
