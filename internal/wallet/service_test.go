package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/logging"
	"github.com/sol-pay/sol_backend/internal/notification"
	"github.com/sol-pay/sol_backend/internal/provider"
)

type recordingNotifier struct {
	events []notification.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event notification.Event) {
	n.events = append(n.events, event)
}

type failingGateway struct{}

func (failingGateway) CreateVirtualAccount(context.Context, provider.Invoice) (provider.Instrument, error) {
	return provider.Instrument{}, errors.New("gateway unavailable")
}

func (failingGateway) GenerateQRIS(context.Context, provider.Invoice) (provider.Instrument, error) {
	return provider.Instrument{}, errors.New("gateway unavailable")
}

type fixture struct {
	svc      *Service
	ledger   ledger.Ledger
	users    *identity.MemoryRepository
	notifier *recordingNotifier
	user     identity.User
}

func newFixture(t *testing.T, cfg Config, gw provider.Gateway) *fixture {
	t.Helper()
	users := identity.NewMemoryRepository()
	user := identity.User{
		ID:             "11111111-1111-1111-1111-111111111111",
		Email:          "traveler@example.com",
		PassportNumber: "X1234567",
		FullName:       "Test Traveler",
		KYCStatus:      identity.KYCApproved,
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	l := ledger.NewInMemory()
	notifier := &recordingNotifier{}
	if gw == nil {
		gw = provider.NewSandboxGateway("client", "secret")
	}
	svc := NewService(l, users, gw, notifier, logging.Discard(), cfg)
	return &fixture{svc: svc, ledger: l, users: users, notifier: notifier, user: user}
}

func TestInitiateTopUp(t *testing.T) {
	f := newFixture(t, Config{MaxTopUp: 1_000_000_000}, nil)

	details, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, 50_000_00, "BCA_VA")
	if err != nil {
		t.Fatalf("initiate top-up: %v", err)
	}
	if details.Transaction.Status != ledger.StatusPending {
		t.Fatalf("expected PENDING, got %s", details.Transaction.Status)
	}
	if details.Instrument.VANumber == "" {
		t.Fatal("expected a virtual account number")
	}
	if details.Transaction.ProviderReference != details.Instrument.Reference {
		t.Fatal("instrument reference not attached to transaction")
	}

	balance, err := f.svc.BalanceOf(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("pending top-up must not move balance, got %d", balance)
	}
}

func TestInitiateTopUpRequiresKYC(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	if err := f.users.UpdateKYC(context.Background(), f.user.ID, identity.KYCPending, ""); err != nil {
		t.Fatalf("update kyc: %v", err)
	}
	if _, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, 10_000_00, "BCA_VA"); !errors.Is(err, ErrKYCRequired) {
		t.Fatalf("expected ErrKYCRequired, got %v", err)
	}
}

func TestQrisPayRequiresKYC(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	ledger.SeedBalance(f.ledger, f.user.ID, 100_000_00)
	if err := f.users.UpdateKYC(context.Background(), f.user.ID, identity.KYCRejected, ""); err != nil {
		t.Fatalf("update kyc: %v", err)
	}
	if _, err := f.svc.QrisPay(context.Background(), f.user.ID, 10_000_00, "coffee"); !errors.Is(err, ErrKYCRequired) {
		t.Fatalf("expected ErrKYCRequired, got %v", err)
	}
}

func TestInitiateTopUpLimits(t *testing.T) {
	f := newFixture(t, Config{MaxTopUp: 1_000_000_000}, nil)

	if _, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, 1_000_000_001, "BCA_VA"); !errors.Is(err, ErrTopUpLimitExceeded) {
		t.Fatalf("expected ErrTopUpLimitExceeded, got %v", err)
	}
	if _, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, -1, "BCA_VA"); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, 10_000_00, "PAYPAL"); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestInitiateTopUpGatewayFailure(t *testing.T) {
	f := newFixture(t, Config{}, failingGateway{})

	_, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, 10_000_00, "BCA_VA")
	if err == nil {
		t.Fatal("expected gateway error")
	}

	_, total, err := f.svc.History(context.Background(), f.user.ID, 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected the pending record to remain, got %d records", total)
	}
}

func TestTopUpSettlementFlow(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	details, err := f.svc.InitiateTopUp(context.Background(), f.user.ID, 250_000_00, "BNI_VA")
	if err != nil {
		t.Fatalf("initiate top-up: %v", err)
	}

	result, err := f.svc.ApplySettlement(context.Background(), provider.Event{
		ProviderReference: details.Instrument.Reference,
		Outcome:           ledger.OutcomeSucceeded,
		Amount:            250_000_00,
	})
	if err != nil {
		t.Fatalf("apply settlement: %v", err)
	}
	if !result.Applied {
		t.Fatal("expected settlement to apply")
	}
	if result.WalletBalance != 250_000_00 {
		t.Fatalf("expected balance 25000000, got %d", result.WalletBalance)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != notification.KindTopUpSettled {
		t.Fatalf("expected one topup_settled notification, got %+v", f.notifier.events)
	}

	// Replay must be a no-op with no second notification.
	result, err = f.svc.ApplySettlement(context.Background(), provider.Event{
		ProviderReference: details.Instrument.Reference,
		Outcome:           ledger.OutcomeSucceeded,
		Amount:            250_000_00,
	})
	if err != nil {
		t.Fatalf("replay settlement: %v", err)
	}
	if result.Applied {
		t.Fatal("replayed settlement must not apply")
	}
	if len(f.notifier.events) != 1 {
		t.Fatalf("replay must not notify again, got %d events", len(f.notifier.events))
	}

	rec, err := f.svc.Reconcile(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent() {
		t.Fatalf("balance %d out of sync with settled net %d", rec.WalletBalance, rec.SettledNet)
	}
}

func TestQrisPaySync(t *testing.T) {
	f := newFixture(t, Config{QrisMode: ledger.ModeSync}, nil)
	ledger.SeedBalance(f.ledger, f.user.ID, 100_000_00)

	details, err := f.svc.QrisPay(context.Background(), f.user.ID, 30_000_00, "coffee")
	if err != nil {
		t.Fatalf("qris pay: %v", err)
	}
	if details.Transaction.Status != ledger.StatusSuccess {
		t.Fatalf("sync payment must settle immediately, got %s", details.Transaction.Status)
	}
	if details.Balance != 70_000_00 {
		t.Fatalf("expected balance 7000000, got %d", details.Balance)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != notification.KindPaymentCompleted {
		t.Fatalf("expected payment_completed notification, got %+v", f.notifier.events)
	}
}

func TestQrisPaySyncInsufficient(t *testing.T) {
	f := newFixture(t, Config{QrisMode: ledger.ModeSync}, nil)
	ledger.SeedBalance(f.ledger, f.user.ID, 10_000_00)

	if _, err := f.svc.QrisPay(context.Background(), f.user.ID, 30_000_00, "coffee"); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("failed payment must not notify, got %+v", f.notifier.events)
	}
}

func TestQrisPayAsync(t *testing.T) {
	f := newFixture(t, Config{QrisMode: ledger.ModeAsync}, nil)
	ledger.SeedBalance(f.ledger, f.user.ID, 100_000_00)

	details, err := f.svc.QrisPay(context.Background(), f.user.ID, 30_000_00, "dinner")
	if err != nil {
		t.Fatalf("qris pay: %v", err)
	}
	if details.Transaction.Status != ledger.StatusPending {
		t.Fatalf("async payment must stay PENDING, got %s", details.Transaction.Status)
	}
	if details.Balance != 100_000_00 {
		t.Fatalf("pending payment must not debit, got %d", details.Balance)
	}
	if details.Instrument.QRContent == "" {
		t.Fatal("expected QR content")
	}

	result, err := f.svc.ApplySettlement(context.Background(), provider.Event{
		ProviderReference: details.Instrument.Reference,
		Outcome:           ledger.OutcomeSucceeded,
		Amount:            30_000_00,
	})
	if err != nil {
		t.Fatalf("apply settlement: %v", err)
	}
	if result.WalletBalance != 70_000_00 {
		t.Fatalf("expected balance 7000000 after settle, got %d", result.WalletBalance)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != notification.KindPaymentCompleted {
		t.Fatalf("expected payment_completed notification, got %+v", f.notifier.events)
	}
}

func TestQrisPayAsyncFailedSettlement(t *testing.T) {
	f := newFixture(t, Config{QrisMode: ledger.ModeAsync}, nil)
	ledger.SeedBalance(f.ledger, f.user.ID, 100_000_00)

	details, err := f.svc.QrisPay(context.Background(), f.user.ID, 30_000_00, "dinner")
	if err != nil {
		t.Fatalf("qris pay: %v", err)
	}

	result, err := f.svc.ApplySettlement(context.Background(), provider.Event{
		ProviderReference: details.Instrument.Reference,
		Outcome:           ledger.OutcomeFailed,
	})
	if err != nil {
		t.Fatalf("apply settlement: %v", err)
	}
	if result.Transaction.Status != ledger.StatusFailed {
		t.Fatalf("expected FAILED, got %s", result.Transaction.Status)
	}
	if result.WalletBalance != 100_000_00 {
		t.Fatalf("failed settlement must not debit, got %d", result.WalletBalance)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != notification.KindPaymentFailed {
		t.Fatalf("expected payment_failed notification, got %+v", f.notifier.events)
	}
}
