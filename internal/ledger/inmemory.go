package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryLedger struct {
	mu          sync.Mutex
	balances    map[string]int64
	records     map[string]*Transaction
	byReference map[string]string
	order       []string
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and for running the API without a database.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:    make(map[string]int64),
		records:     make(map[string]*Transaction),
		byReference: make(map[string]string),
	}
}

func (l *inMemoryLedger) EnsureWallet(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[userID]; !exists {
		l.balances[userID] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, exists := l.balances[userID]
	if !exists {
		return 0, ErrWalletNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) CreatePending(_ context.Context, input PendingInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.balances[input.UserID]; !exists {
		return Transaction{}, ErrWalletNotFound
	}

	mode := input.Mode
	if mode == "" {
		mode = ModeAsync
	}

	now := time.Now().UTC()
	tx := &Transaction{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Type:        input.Type,
		Status:      StatusPending,
		Amount:      input.Amount,
		Description: input.Description,
		Mode:        mode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	l.records[tx.ID] = tx
	l.order = append(l.order, tx.ID)
	return *tx, nil
}

func (l *inMemoryLedger) AttachInstrument(_ context.Context, txID, providerKind, providerReference string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, exists := l.records[txID]
	if !exists {
		return ErrTransactionNotFound
	}
	if tx.ProviderReference != "" {
		return ErrReferenceAttached
	}
	if _, taken := l.byReference[providerReference]; taken {
		return ErrReferenceAttached
	}

	tx.ProviderKind = providerKind
	tx.ProviderReference = providerReference
	tx.UpdatedAt = time.Now().UTC()
	l.byReference[providerReference] = tx.ID
	return nil
}

func (l *inMemoryLedger) PayNow(_ context.Context, input PayNowInput) (Transaction, int64, error) {
	if input.Amount <= 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[input.UserID]
	if !exists {
		return Transaction{}, 0, ErrWalletNotFound
	}
	if balance < input.Amount {
		return Transaction{}, 0, ErrInsufficientFunds
	}
	if input.ProviderReference != "" {
		if _, taken := l.byReference[input.ProviderReference]; taken {
			return Transaction{}, 0, ErrReferenceAttached
		}
	}

	balance -= input.Amount
	l.balances[input.UserID] = balance

	now := time.Now().UTC()
	tx := &Transaction{
		ID:                uuid.NewString(),
		UserID:            input.UserID,
		Type:              TypeQrisPayment,
		Status:            StatusSuccess,
		Amount:            input.Amount,
		ProviderKind:      input.ProviderKind,
		ProviderReference: input.ProviderReference,
		Description:       input.Description,
		Mode:              ModeSync,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	l.records[tx.ID] = tx
	l.order = append(l.order, tx.ID)
	if input.ProviderReference != "" {
		l.byReference[input.ProviderReference] = tx.ID
	}
	return *tx, balance, nil
}

func (l *inMemoryLedger) Settle(_ context.Context, providerReference string, outcome Outcome, amount int64) (SettlementResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txID, exists := l.byReference[providerReference]
	if !exists {
		return SettlementResult{}, ErrTransactionNotFound
	}
	tx := l.records[txID]
	balance := l.balances[tx.UserID]

	if tx.Settled() {
		return SettlementResult{Transaction: *tx, WalletBalance: balance, Applied: false}, nil
	}
	if amount > 0 && amount != tx.Amount {
		return SettlementResult{}, ErrAmountMismatch
	}

	now := time.Now().UTC()
	switch outcome {
	case OutcomeSucceeded:
		switch tx.Type {
		case TypeTopUp, TypeRefund:
			balance += tx.Amount
		case TypeQrisPayment:
			if tx.Mode == ModeAsync {
				if balance < tx.Amount {
					// Funds were spent between initiation and settlement; the
					// payment fails rather than breaking the non-negative
					// balance invariant.
					tx.Status = StatusFailed
					tx.UpdatedAt = now
					return SettlementResult{Transaction: *tx, WalletBalance: balance, Applied: true}, nil
				}
				balance -= tx.Amount
			}
		}
		tx.Status = StatusSuccess
	case OutcomeFailed:
		tx.Status = StatusFailed
	default:
		return SettlementResult{}, ErrInvalidOutcome
	}

	tx.UpdatedAt = now
	l.balances[tx.UserID] = balance
	return SettlementResult{Transaction: *tx, WalletBalance: balance, Applied: true}, nil
}

func (l *inMemoryLedger) Refund(_ context.Context, originalTxID string, amount int64) (Transaction, int64, error) {
	if amount <= 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	original, exists := l.records[originalTxID]
	if !exists {
		return Transaction{}, 0, ErrTransactionNotFound
	}
	if amount > original.Amount {
		return Transaction{}, 0, ErrRefundExceedsOriginal
	}

	balance := l.balances[original.UserID] + amount
	l.balances[original.UserID] = balance

	now := time.Now().UTC()
	refund := &Transaction{
		ID:          uuid.NewString(),
		UserID:      original.UserID,
		Type:        TypeRefund,
		Status:      StatusSuccess,
		Amount:      amount,
		Description: "Refund for transaction " + original.ID,
		Mode:        ModeSync,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	l.records[refund.ID] = refund
	l.order = append(l.order, refund.ID)
	return *refund, balance, nil
}

func (l *inMemoryLedger) ByReference(_ context.Context, providerReference string) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txID, exists := l.byReference[providerReference]
	if !exists {
		return Transaction{}, ErrTransactionNotFound
	}
	return *l.records[txID], nil
}

func (l *inMemoryLedger) Transactions(_ context.Context, userID string, limit, offset int) ([]Transaction, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var mine []Transaction
	for i := len(l.order) - 1; i >= 0; i-- {
		tx := l.records[l.order[i]]
		if tx.UserID == userID {
			mine = append(mine, *tx)
		}
	}

	total := len(mine)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

func (l *inMemoryLedger) Reconcile(_ context.Context, userID string) (Reconciliation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[userID]
	if !exists {
		return Reconciliation{}, ErrWalletNotFound
	}

	var net int64
	for _, id := range l.order {
		tx := l.records[id]
		if tx.UserID != userID || tx.Status != StatusSuccess {
			continue
		}
		switch tx.Type {
		case TypeTopUp, TypeRefund:
			net += tx.Amount
		case TypeQrisPayment:
			net -= tx.Amount
		}
	}

	return Reconciliation{UserID: userID, WalletBalance: balance, SettledNet: net}, nil
}
