package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tripstay/internal/domain"
	"tripstay/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Listing{}, &models.Review{}, &models.Booking{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newPendingPayment(t *testing.T, db *gorm.DB, bookingID uint) *models.Payment {
	t.Helper()
	p := &models.Payment{
		BookingID:     bookingID,
		Amount:        decimal.NewFromInt(100),
		Currency:      "ETB",
		CustomerEmail: "guest@example.com",
		CustomerName:  "Abebe Bikila",
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return p
}

func TestPaymentCreateDefaults(t *testing.T) {
	db := testDB(t)
	p := newPendingPayment(t, db, 1)

	if p.ID == "" {
		t.Error("expected generated uuid id")
	}
	if len(p.GatewayReference) != 12 || p.GatewayReference[:4] != "TRV-" {
		t.Errorf("unexpected reference %q", p.GatewayReference)
	}
	if p.Status != domain.PaymentPending {
		t.Errorf("expected pending, got %s", p.Status)
	}
}

func TestMarkProcessingCAS(t *testing.T) {
	db := testDB(t)
	repo := NewPaymentRepository(db)
	p := newPendingPayment(t, db, 1)

	won, err := repo.MarkProcessing(p.ID, "https://pay/x", "TRV-ABC")
	if err != nil || !won {
		t.Fatalf("expected first transition to win, won=%v err=%v", won, err)
	}
	won, err = repo.MarkProcessing(p.ID, "https://pay/y", "TRV-XYZ")
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if won {
		t.Error("second transition from non-pending should be a no-op")
	}

	got, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.PaymentProcessing {
		t.Errorf("status = %s", got.Status)
	}
	if got.CheckoutURL == nil || *got.CheckoutURL != "https://pay/x" {
		t.Errorf("checkout_url = %v", got.CheckoutURL)
	}
	if got.GatewayTransactionID == nil || *got.GatewayTransactionID != "TRV-ABC" {
		t.Errorf("gateway_transaction_id = %v", got.GatewayTransactionID)
	}
}

func TestMarkCompletedOnlyOnce(t *testing.T) {
	db := testDB(t)
	repo := NewPaymentRepository(db)
	p := newPendingPayment(t, db, 1)
	if _, err := repo.MarkProcessing(p.ID, "https://pay/x", "TRV-ABC"); err != nil {
		t.Fatal(err)
	}

	paidAt := time.Now()
	won, err := repo.MarkCompleted(p.ID, "telebirr", paidAt)
	if err != nil || !won {
		t.Fatalf("first completion should win, won=%v err=%v", won, err)
	}
	// A racing verify/webhook that loses the CAS must degenerate to a no-op.
	won, err = repo.MarkCompleted(p.ID, "telebirr", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second completion must not win")
	}

	got, _ := repo.GetByID(p.ID)
	if got.Status != domain.PaymentCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if got.PaidAt == nil {
		t.Error("paid_at must be set on completion")
	}
	if got.PaymentMethod == nil || *got.PaymentMethod != "telebirr" {
		t.Errorf("payment_method = %v", got.PaymentMethod)
	}
}

func TestMarkFailedFromTerminalIsNoop(t *testing.T) {
	db := testDB(t)
	repo := NewPaymentRepository(db)
	p := newPendingPayment(t, db, 1)
	if _, err := repo.MarkCompleted(p.ID, "cash", time.Now()); err != nil {
		t.Fatal(err)
	}

	won, err := repo.MarkFailed(p.ID, "gateway status: failed")
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("completed payment must not transition to failed")
	}
}

func TestExpireStaleBoundary(t *testing.T) {
	db := testDB(t)
	repo := NewPaymentRepository(db)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := newPendingPayment(t, db, 1)
	fresh := newPendingPayment(t, db, 2)
	db.Model(stale).Update("created_at", created)
	db.Model(fresh).Update("created_at", created.Add(time.Minute))

	// Sweep at created+24h+1s with a 24h window: stale is past the cutoff,
	// fresh (one minute younger) is not.
	cutoff := created.Add(24*time.Hour + time.Second).Add(-24 * time.Hour)
	count, err := repo.ExpireStale(cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired, got %d", count)
	}

	got, _ := repo.GetByID(stale.ID)
	if got.Status != domain.PaymentCancelled {
		t.Errorf("stale status = %s", got.Status)
	}
	if got.FailureReason == nil || *got.FailureReason != domain.ExpiredFailureReason {
		t.Errorf("failure_reason = %v", got.FailureReason)
	}
	got, _ = repo.GetByID(fresh.ID)
	if got.Status != domain.PaymentPending {
		t.Errorf("fresh status = %s", got.Status)
	}

	// Idempotent: rerunning touches nothing.
	count, err = repo.ExpireStale(cutoff)
	if err != nil || count != 0 {
		t.Errorf("second sweep count=%d err=%v", count, err)
	}
}

func TestGetByTransactionID(t *testing.T) {
	db := testDB(t)
	repo := NewPaymentRepository(db)
	p := newPendingPayment(t, db, 1)
	if _, err := repo.MarkProcessing(p.ID, "https://pay/x", "TRV-FIND"); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByTransactionID("TRV-FIND")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != p.ID {
		t.Errorf("got %s want %s", got.ID, p.ID)
	}
	if _, err := repo.GetByTransactionID("unknown-ref"); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
