package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/logging"
	"github.com/sol-pay/sol_backend/internal/notification"
)

type recordingNotifier struct {
	events []notification.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event notification.Event) {
	n.events = append(n.events, event)
}

func newTestService(t *testing.T) (*Service, ledger.Ledger, *recordingNotifier) {
	t.Helper()
	l := ledger.NewInMemory()
	stats, ok := l.(ledger.StatsProvider)
	if !ok {
		t.Fatal("in-memory ledger must provide stats")
	}
	users := identity.NewMemoryRepository()
	if err := users.Create(context.Background(), identity.User{
		ID:             "22222222-2222-2222-2222-222222222222",
		Email:          "traveler@example.com",
		PassportNumber: "X1234567",
		KYCStatus:      identity.KYCApproved,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	notifier := &recordingNotifier{}
	svc := NewService(l, stats, users, notifier, logging.Discard(), "admin@sol.id", "changeme123")
	return svc, l, notifier
}

func settledPayment(t *testing.T, l ledger.Ledger, userID string, amount int64) ledger.Transaction {
	t.Helper()
	ctx := context.Background()
	if err := l.EnsureWallet(ctx, userID); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(l, userID, amount)
	tx, _, err := l.PayNow(ctx, ledger.PayNowInput{
		UserID:            userID,
		Amount:            amount,
		ProviderKind:      "sandbox_qris",
		ProviderReference: "ref-" + userID,
		Description:       "test purchase",
	})
	if err != nil {
		t.Fatalf("pay now: %v", err)
	}
	return tx
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService(t)

	if err := svc.Authenticate("Admin@SOL.id", "changeme123"); err != nil {
		t.Fatalf("expected login to succeed: %v", err)
	}
	if err := svc.Authenticate("admin@sol.id", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if err := svc.Authenticate("other@sol.id", "changeme123"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestRefund(t *testing.T) {
	svc, l, notifier := newTestService(t)
	userID := "22222222-2222-2222-2222-222222222222"
	original := settledPayment(t, l, userID, 50_000_00)

	refund, balance, err := svc.Refund(context.Background(), original.ID, 20_000_00, "partial dispute")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Type != ledger.TypeRefund || refund.Status != ledger.StatusSuccess {
		t.Fatalf("unexpected refund record: %+v", refund)
	}
	if balance != 20_000_00 {
		t.Fatalf("expected balance 2000000, got %d", balance)
	}
	if len(notifier.events) != 1 || notifier.events[0].Kind != notification.KindRefundIssued {
		t.Fatalf("expected refund_issued notification, got %+v", notifier.events)
	}
}

func TestRefundGuards(t *testing.T) {
	svc, l, _ := newTestService(t)
	userID := "22222222-2222-2222-2222-222222222222"
	original := settledPayment(t, l, userID, 50_000_00)

	if _, _, err := svc.Refund(context.Background(), "no-such-tx", 10_000_00, ""); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if _, _, err := svc.Refund(context.Background(), original.ID, 60_000_00, ""); !errors.Is(err, ledger.ErrRefundExceedsOriginal) {
		t.Fatalf("expected ErrRefundExceedsOriginal, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, l, _ := newTestService(t)
	userID := "22222222-2222-2222-2222-222222222222"
	settledPayment(t, l, userID, 50_000_00)

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.WalletCount != 1 {
		t.Fatalf("expected 1 wallet, got %d", stats.WalletCount)
	}
	if stats.PaymentVolume != 50_000_00 {
		t.Fatalf("expected payment volume 5000000, got %d", stats.PaymentVolume)
	}
	if stats.ByStatus[ledger.StatusSuccess] != 1 {
		t.Fatalf("expected one settled transaction, got %+v", stats.ByStatus)
	}
	if stats.UserCount != 1 || stats.ByKYC[identity.KYCApproved] != 1 {
		t.Fatalf("expected one approved user, got %+v", stats.ByKYC)
	}
}
