package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/notification"
)

// ErrBadCredentials indicates a failed admin login.
var ErrBadCredentials = errors.New("invalid admin credentials")

// Stats combines ledger figures with user counts for the dashboard.
type Stats struct {
	ledger.Stats
	UserCount int64
	ByKYC     map[identity.KYCStatus]int64
}

// Service covers back-office operations: refunds and platform stats.
type Service struct {
	ledger   ledger.Ledger
	stats    ledger.StatsProvider
	users    identity.Repository
	notifier notification.Notifier
	logger   *slog.Logger

	email    string
	password string
}

// NewService wires the admin service. email/password are the configured
// back-office credentials.
func NewService(l ledger.Ledger, stats ledger.StatsProvider, users identity.Repository, notifier notification.Notifier, logger *slog.Logger, email, password string) *Service {
	return &Service{
		ledger:   l,
		stats:    stats,
		users:    users,
		notifier: notifier,
		logger:   logger,
		email:    strings.ToLower(email),
		password: password,
	}
}

// Authenticate checks the configured admin credentials.
func (s *Service) Authenticate(email, password string) error {
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(email))), []byte(s.email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if s.email == "" || s.password == "" || !emailOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}

// Refund credits back part or all of a settled payment. The amount may not
// exceed the original transaction amount.
func (s *Service) Refund(ctx context.Context, originalTxID string, amount int64, reason string) (ledger.Transaction, int64, error) {
	refund, balance, err := s.ledger.Refund(ctx, originalTxID, amount)
	if err != nil {
		return ledger.Transaction{}, 0, err
	}

	s.notifier.Notify(ctx, notification.Event{
		Kind:          notification.KindRefundIssued,
		UserID:        refund.UserID,
		TransactionID: refund.ID,
		Amount:        refund.Amount,
		Detail:        reason,
	})
	s.logger.Info("refund issued",
		slog.String("refund_id", refund.ID),
		slog.String("original_transaction_id", originalTxID),
		slog.String("user_id", refund.UserID),
		slog.Int64("amount", refund.Amount))
	return refund, balance, nil
}

// Stats reports platform-wide ledger and user figures.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ledgerStats, err := s.stats.GlobalStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	byKYC, err := s.users.CountByKYCStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Stats: ledgerStats, ByKYC: byKYC}
	for _, count := range byKYC {
		out.UserCount += count
	}
	return out, nil
}

// Reconcile recomputes a user's settled net and compares it with the cached
// wallet balance.
func (s *Service) Reconcile(ctx context.Context, userID string) (ledger.Reconciliation, error) {
	return s.ledger.Reconcile(ctx, userID)
}
