package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/notification"
	"github.com/sol-pay/sol_backend/internal/provider"
)

var (
	// ErrKYCRequired indicates the user has not passed verification yet.
	ErrKYCRequired = errors.New("kyc approval required")

	// ErrTopUpLimitExceeded indicates the amount is above the per-transaction cap.
	ErrTopUpLimitExceeded = errors.New("top-up amount exceeds the allowed maximum")

	// ErrUnsupportedMethod indicates an unknown top-up channel.
	ErrUnsupportedMethod = errors.New("unsupported top-up method")
)

var topUpMethods = map[string]bool{
	"BCA_VA":     true,
	"BNI_VA":     true,
	"BRI_VA":     true,
	"MANDIRI_VA": true,
}

// UserDirectory is the slice of the identity store the wallet needs.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
}

// TopUpDetails is returned from InitiateTopUp: the pending transaction plus
// the virtual account the user must pay into.
type TopUpDetails struct {
	Transaction ledger.Transaction
	Instrument  provider.Instrument
}

// PaymentDetails is returned from QrisPay. For synchronous settlement Balance
// reflects the debit; for asynchronous settlement it is the pre-payment
// balance and Instrument carries the QR to scan.
type PaymentDetails struct {
	Transaction ledger.Transaction
	Instrument  provider.Instrument
	Balance     int64
}

// Service orchestrates wallet flows on top of the ledger, the payment
// gateway and the notifier.
type Service struct {
	ledger   ledger.Ledger
	users    UserDirectory
	gateway  provider.Gateway
	notifier notification.Notifier
	logger   *slog.Logger

	maxTopUp int64
	qrisMode ledger.SettlementMode
}

// Config tunes wallet policy.
type Config struct {
	// MaxTopUp is the per-transaction top-up cap in minor units. Zero means
	// no cap.
	MaxTopUp int64

	// QrisMode selects synchronous or webhook-driven QRIS settlement.
	QrisMode ledger.SettlementMode
}

// NewService wires a wallet service.
func NewService(l ledger.Ledger, users UserDirectory, gateway provider.Gateway, notifier notification.Notifier, logger *slog.Logger, cfg Config) *Service {
	mode := cfg.QrisMode
	if mode == "" {
		mode = ledger.ModeSync
	}
	return &Service{
		ledger:   l,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		maxTopUp: cfg.MaxTopUp,
		qrisMode: mode,
	}
}

// BalanceOf returns the wallet balance, provisioning the wallet on first use.
func (s *Service) BalanceOf(ctx context.Context, userID string) (int64, error) {
	if err := s.ledger.EnsureWallet(ctx, userID); err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, userID)
}

// History lists the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]ledger.Transaction, int, error) {
	return s.ledger.Transactions(ctx, userID, limit, offset)
}

// InitiateTopUp creates a PENDING top-up and a virtual account for it. The
// balance only moves when the provider reports payment through a webhook.
func (s *Service) InitiateTopUp(ctx context.Context, userID string, amount int64, method string) (TopUpDetails, error) {
	user, err := s.approvedUser(ctx, userID)
	if err != nil {
		return TopUpDetails{}, err
	}
	if !topUpMethods[method] {
		return TopUpDetails{}, ErrUnsupportedMethod
	}
	if s.maxTopUp > 0 && amount > s.maxTopUp {
		return TopUpDetails{}, ErrTopUpLimitExceeded
	}

	if err := s.ledger.EnsureWallet(ctx, userID); err != nil {
		return TopUpDetails{}, err
	}
	tx, err := s.ledger.CreatePending(ctx, ledger.PendingInput{
		UserID:      userID,
		Type:        ledger.TypeTopUp,
		Amount:      amount,
		Mode:        ledger.ModeAsync,
		Description: "wallet top-up via " + method,
	})
	if err != nil {
		return TopUpDetails{}, err
	}

	inst, err := s.gateway.CreateVirtualAccount(ctx, provider.Invoice{
		ReferenceID: tx.ID,
		Amount:      amount,
		Channel:     method,
		Customer:    user.FullName,
	})
	if err != nil {
		// The transaction stays PENDING; it can be retried or expired later.
		s.logger.Error("virtual account creation failed",
			slog.String("transaction_id", tx.ID), slog.String("error", err.Error()))
		return TopUpDetails{}, fmt.Errorf("create virtual account: %w", err)
	}
	if err := s.ledger.AttachInstrument(ctx, tx.ID, inst.Kind, inst.Reference); err != nil {
		return TopUpDetails{}, err
	}
	tx.ProviderKind = inst.Kind
	tx.ProviderReference = inst.Reference

	s.logger.Info("top-up initiated",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.String("method", method))
	return TopUpDetails{Transaction: tx, Instrument: inst}, nil
}

// QrisPay charges the wallet for a QRIS merchant payment. In synchronous mode
// the debit happens immediately; in asynchronous mode a PENDING transaction is
// recorded and the debit waits for the provider webhook.
func (s *Service) QrisPay(ctx context.Context, userID string, amount int64, description string) (PaymentDetails, error) {
	user, err := s.approvedUser(ctx, userID)
	if err != nil {
		return PaymentDetails{}, err
	}
	if err := s.ledger.EnsureWallet(ctx, userID); err != nil {
		return PaymentDetails{}, err
	}

	if s.qrisMode == ledger.ModeAsync {
		return s.qrisPayAsync(ctx, user, amount, description)
	}
	return s.qrisPaySync(ctx, user, amount, description)
}

func (s *Service) qrisPaySync(ctx context.Context, user identity.User, amount int64, description string) (PaymentDetails, error) {
	inst, err := s.gateway.GenerateQRIS(ctx, provider.Invoice{
		ReferenceID: uuid.NewString(),
		Amount:      amount,
		Customer:    user.FullName,
	})
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("generate qris: %w", err)
	}

	tx, balance, err := s.ledger.PayNow(ctx, ledger.PayNowInput{
		UserID:            user.ID,
		Amount:            amount,
		ProviderKind:      inst.Kind,
		ProviderReference: inst.Reference,
		Description:       description,
	})
	if err != nil {
		return PaymentDetails{}, err
	}

	s.notifier.Notify(ctx, notification.Event{
		Kind:          notification.KindPaymentCompleted,
		UserID:        user.ID,
		TransactionID: tx.ID,
		Amount:        amount,
		Detail:        description,
	})
	s.logger.Info("qris payment settled",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", user.ID),
		slog.Int64("amount", amount))
	return PaymentDetails{Transaction: tx, Instrument: inst, Balance: balance}, nil
}

func (s *Service) qrisPayAsync(ctx context.Context, user identity.User, amount int64, description string) (PaymentDetails, error) {
	tx, err := s.ledger.CreatePending(ctx, ledger.PendingInput{
		UserID:      user.ID,
		Type:        ledger.TypeQrisPayment,
		Amount:      amount,
		Mode:        ledger.ModeAsync,
		Description: description,
	})
	if err != nil {
		return PaymentDetails{}, err
	}

	inst, err := s.gateway.GenerateQRIS(ctx, provider.Invoice{
		ReferenceID: tx.ID,
		Amount:      amount,
		Customer:    user.FullName,
	})
	if err != nil {
		s.logger.Error("qris generation failed",
			slog.String("transaction_id", tx.ID), slog.String("error", err.Error()))
		return PaymentDetails{}, fmt.Errorf("generate qris: %w", err)
	}
	if err := s.ledger.AttachInstrument(ctx, tx.ID, inst.Kind, inst.Reference); err != nil {
		return PaymentDetails{}, err
	}
	tx.ProviderKind = inst.Kind
	tx.ProviderReference = inst.Reference

	balance, err := s.ledger.Balance(ctx, user.ID)
	if err != nil {
		return PaymentDetails{}, err
	}
	s.logger.Info("qris payment initiated",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", user.ID),
		slog.Int64("amount", amount))
	return PaymentDetails{Transaction: tx, Instrument: inst, Balance: balance}, nil
}

// ApplySettlement applies a provider payment event to the ledger. Replayed
// events for an already settled transaction return Applied=false and change
// nothing.
func (s *Service) ApplySettlement(ctx context.Context, event provider.Event) (ledger.SettlementResult, error) {
	result, err := s.ledger.Settle(ctx, event.ProviderReference, event.Outcome, event.Amount)
	if err != nil {
		return ledger.SettlementResult{}, err
	}
	if !result.Applied {
		s.logger.Info("settlement replayed, no-op",
			slog.String("provider_reference", event.ProviderReference),
			slog.String("transaction_id", result.Transaction.ID))
		return result, nil
	}

	tx := result.Transaction
	kind := notification.KindPaymentFailed
	if tx.Status == ledger.StatusSuccess {
		if tx.Type == ledger.TypeTopUp {
			kind = notification.KindTopUpSettled
		} else {
			kind = notification.KindPaymentCompleted
		}
	}
	s.notifier.Notify(ctx, notification.Event{
		Kind:          kind,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Detail:        tx.Description,
	})
	s.logger.Info("settlement applied",
		slog.String("transaction_id", tx.ID),
		slog.String("status", string(tx.Status)),
		slog.Int64("balance", result.WalletBalance))
	return result, nil
}

// TransactionByReference resolves the transaction correlated with a provider
// reference.
func (s *Service) TransactionByReference(ctx context.Context, providerReference string) (ledger.Transaction, error) {
	return s.ledger.ByReference(ctx, providerReference)
}

// Reconcile recomputes the settled net for a user and compares it with the
// stored balance.
func (s *Service) Reconcile(ctx context.Context, userID string) (ledger.Reconciliation, error) {
	return s.ledger.Reconcile(ctx, userID)
}

func (s *Service) approvedUser(ctx context.Context, userID string) (identity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return identity.User{}, err
	}
	if user.KYCStatus != identity.KYCApproved {
		return identity.User{}, ErrKYCRequired
	}
	return user, nil
}
