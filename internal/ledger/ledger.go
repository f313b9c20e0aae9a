package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when a debit would push the wallet balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound indicates no wallet exists for the given user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates no transaction matches the given id or
	// provider reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrReferenceAttached indicates the transaction already carries a provider
	// reference; the reference is write-once.
	ErrReferenceAttached = errors.New("provider reference already attached")

	// ErrAmountMismatch indicates a settlement event carried an amount that does
	// not match the recorded transaction amount.
	ErrAmountMismatch = errors.New("settled amount does not match transaction amount")

	// ErrRefundExceedsOriginal indicates a refund larger than the original
	// transaction amount.
	ErrRefundExceedsOriginal = errors.New("refund exceeds original amount")

	// ErrInvalidOutcome indicates a settlement outcome outside the normalized
	// vocabulary.
	ErrInvalidOutcome = errors.New("invalid settlement outcome")
)

// Type classifies a transaction.
type Type string

const (
	TypeTopUp       Type = "TOPUP"
	TypeQrisPayment Type = "QRIS_PAYMENT"
	TypeRefund      Type = "REFUND"
)

// Status tracks the settlement state. SUCCESS and FAILED are terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Outcome is the normalized settlement outcome produced by the provider adapter.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
)

// SettlementMode records, at creation time, which path moves the balance for a
// transaction: sync (debited atomically at initiation) or async (applied by
// Settle). Exactly one of the two paths ever fires per transaction.
type SettlementMode string

const (
	ModeSync  SettlementMode = "sync"
	ModeAsync SettlementMode = "async"
)

// Transaction is a record of a balance-affecting event. Amounts are IDR minor
// units. Once Status is terminal, Amount, Type and UserID never change; only a
// not-yet-set provider reference may still be attached.
type Transaction struct {
	ID                string
	UserID            string
	Type              Type
	Status            Status
	Amount            int64
	ProviderKind      string
	ProviderReference string
	Description       string
	Mode              SettlementMode
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Settled reports whether the transaction reached a terminal status.
func (t Transaction) Settled() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// PendingInput captures the data needed to open a PENDING transaction.
type PendingInput struct {
	UserID      string
	Type        Type
	Amount      int64
	Mode        SettlementMode
	Description string
}

// PayNowInput captures a synchronous-completion payment: balance check, debit
// and SUCCESS insert happen in one atomic unit.
type PayNowInput struct {
	UserID            string
	Amount            int64
	ProviderKind      string
	ProviderReference string
	Description       string
}

// SettlementResult reports the outcome of applying a settlement event. Applied
// is false when the transaction was already terminal and the call was a no-op.
type SettlementResult struct {
	Transaction   Transaction
	WalletBalance int64
	Applied       bool
}

// Reconciliation compares the cached wallet balance with the net of the
// settled transaction log for one user.
type Reconciliation struct {
	UserID        string
	WalletBalance int64
	SettledNet    int64
}

// Consistent reports whether the cached balance matches the settled log.
func (r Reconciliation) Consistent() bool {
	return r.WalletBalance == r.SettledNet
}

// Ledger serializes all balance-affecting state transitions per user so that
// the wallet balance always equals the net of the settled transaction log.
// Implemented by the in-memory backend (tests) and the Postgres backend.
type Ledger interface {
	// EnsureWallet provisions a zero-balance wallet for the user. Idempotent.
	EnsureWallet(ctx context.Context, userID string) error

	// Balance returns the user's current wallet balance.
	Balance(ctx context.Context, userID string) (int64, error)

	// CreatePending opens a PENDING transaction without touching the balance.
	CreatePending(ctx context.Context, input PendingInput) (Transaction, error)

	// AttachInstrument records the provider correlation on a transaction. The
	// reference is write-once.
	AttachInstrument(ctx context.Context, txID, providerKind, providerReference string) error

	// PayNow checks the balance, debits it and records a SUCCESS transaction in
	// one atomic unit scoped to the user's wallet row.
	PayNow(ctx context.Context, input PayNowInput) (Transaction, int64, error)

	// Settle applies a provider settlement event to the PENDING transaction
	// matching the reference. Settling an already-terminal transaction is a
	// no-op and returns Applied=false with no error.
	Settle(ctx context.Context, providerReference string, outcome Outcome, amount int64) (SettlementResult, error)

	// Refund records a new SUCCESS REFUND transaction against the original
	// transaction's user and credits the wallet. The original is not mutated.
	Refund(ctx context.Context, originalTxID string, amount int64) (Transaction, int64, error)

	// ByReference fetches a transaction by its provider reference.
	ByReference(ctx context.Context, providerReference string) (Transaction, error)

	// Transactions lists a user's transactions, newest first, with the total
	// count for pagination.
	Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error)

	// Reconcile recomputes the settled net (SUCCESS TOPUP+REFUND minus SUCCESS
	// QRIS_PAYMENT) and compares it with the cached balance.
	Reconcile(ctx context.Context, userID string) (Reconciliation, error)
}
