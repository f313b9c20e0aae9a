package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const txColumns = `id, user_id, type, status, amount, provider_kind,
	provider_reference, description, settlement_mode, created_at, updated_at`

// PostgresLedger persists wallets and transactions in PostgreSQL. Every
// read-check-then-write sequence runs inside one transaction holding a
// FOR UPDATE lock on the affected rows, so concurrent debits for the same
// user serialize.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureWallet guarantees a zero-balance wallet row exists for the user.
func (l *PostgresLedger) EnsureWallet(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = l.db.Exec(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, now())
        ON CONFLICT (user_id) DO NOTHING`, uid)
	return err
}

// Balance returns the cached wallet balance for the user.
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CreatePending opens a PENDING transaction. The wallet balance is not touched.
func (l *PostgresLedger) CreatePending(ctx context.Context, input PendingInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	mode := input.Mode
	if mode == "" {
		mode = ModeAsync
	}

	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`, input.UserID).Scan(&exists); err != nil {
		return Transaction{}, err
	}
	if !exists {
		return Transaction{}, ErrWalletNotFound
	}

	now := time.Now().UTC()
	tx := Transaction{
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

	_, err := l.db.Exec(ctx, `INSERT INTO transactions
        (id, user_id, type, status, amount, provider_kind, provider_reference, description, settlement_mode, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, '', '', $6, $7, $8, $8)`,
		tx.ID, tx.UserID, tx.Type, tx.Status, tx.Amount, tx.Description, tx.Mode, now)
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// AttachInstrument records the provider correlation. The reference is
// write-once; duplicates across transactions are rejected by a unique index.
func (l *PostgresLedger) AttachInstrument(ctx context.Context, txID, providerKind, providerReference string) error {
	cmd, err := l.db.Exec(ctx, `UPDATE transactions
        SET provider_kind = $2, provider_reference = $3, updated_at = now()
        WHERE id = $1 AND provider_reference = ''`, txID, providerKind, providerReference)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReferenceAttached
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, txID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTransactionNotFound
		}
		return ErrReferenceAttached
	}
	return nil
}

// PayNow performs the balance check, debit and SUCCESS insert in one database
// transaction holding the wallet row lock.
func (l *PostgresLedger) PayNow(ctx context.Context, input PayNowInput) (Transaction, int64, error) {
	if input.Amount <= 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}

	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, 0, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	balance, err := walletForUpdate(ctx, dbtx, input.UserID)
	if err != nil {
		return Transaction{}, 0, err
	}
	if balance < input.Amount {
		return Transaction{}, 0, ErrInsufficientFunds
	}

	balance -= input.Amount
	now := time.Now().UTC()
	tx := Transaction{
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

	if _, err := dbtx.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = now() WHERE user_id = $1`, input.UserID, balance); err != nil {
		return Transaction{}, 0, err
	}
	if _, err := dbtx.Exec(ctx, `INSERT INTO transactions
        (id, user_id, type, status, amount, provider_kind, provider_reference, description, settlement_mode, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		tx.ID, tx.UserID, tx.Type, tx.Status, tx.Amount, tx.ProviderKind, tx.ProviderReference, tx.Description, tx.Mode, now); err != nil {
		if isUniqueViolation(err) {
			return Transaction{}, 0, ErrReferenceAttached
		}
		return Transaction{}, 0, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, 0, err
	}
	return tx, balance, nil
}

// Settle applies a settlement event exactly once. Re-settling a terminal
// transaction returns the prior state with Applied=false.
func (l *PostgresLedger) Settle(ctx context.Context, providerReference string, outcome Outcome, amount int64) (SettlementResult, error) {
	if outcome != OutcomeSucceeded && outcome != OutcomeFailed {
		return SettlementResult{}, ErrInvalidOutcome
	}

	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettlementResult{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	row := dbtx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE provider_reference = $1 FOR UPDATE`, providerReference)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettlementResult{}, ErrTransactionNotFound
		}
		return SettlementResult{}, err
	}

	if tx.Settled() {
		balance, err := l.Balance(ctx, tx.UserID)
		if err != nil {
			return SettlementResult{}, err
		}
		return SettlementResult{Transaction: tx, WalletBalance: balance, Applied: false}, nil
	}
	if amount > 0 && amount != tx.Amount {
		return SettlementResult{}, ErrAmountMismatch
	}

	balance, err := walletForUpdate(ctx, dbtx, tx.UserID)
	if err != nil {
		return SettlementResult{}, err
	}

	status := StatusFailed
	if outcome == OutcomeSucceeded {
		status = StatusSuccess
		switch tx.Type {
		case TypeTopUp, TypeRefund:
			balance += tx.Amount
		case TypeQrisPayment:
			if tx.Mode == ModeAsync {
				if balance < tx.Amount {
					// Funds were spent between initiation and settlement; fail
					// the payment instead of going negative.
					status = StatusFailed
				} else {
					balance -= tx.Amount
				}
			}
		}
	}

	now := time.Now().UTC()
	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1`, tx.ID, status, now); err != nil {
		return SettlementResult{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = now() WHERE user_id = $1`, tx.UserID, balance); err != nil {
		return SettlementResult{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return SettlementResult{}, err
	}

	tx.Status = status
	tx.UpdatedAt = now
	return SettlementResult{Transaction: tx, WalletBalance: balance, Applied: true}, nil
}

// Refund credits the original transaction's user and records a new SUCCESS
// REFUND transaction. The original row is never mutated.
func (l *PostgresLedger) Refund(ctx context.Context, originalTxID string, amount int64) (Transaction, int64, error) {
	if amount <= 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}

	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, 0, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	row := dbtx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, originalTxID)
	original, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, 0, ErrTransactionNotFound
		}
		return Transaction{}, 0, err
	}
	if amount > original.Amount {
		return Transaction{}, 0, ErrRefundExceedsOriginal
	}

	balance, err := walletForUpdate(ctx, dbtx, original.UserID)
	if err != nil {
		return Transaction{}, 0, err
	}
	balance += amount

	now := time.Now().UTC()
	refund := Transaction{
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

	if _, err := dbtx.Exec(ctx, `INSERT INTO transactions
        (id, user_id, type, status, amount, provider_kind, provider_reference, description, settlement_mode, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, '', '', $6, $7, $8, $8)`,
		refund.ID, refund.UserID, refund.Type, refund.Status, refund.Amount, refund.Description, refund.Mode, now); err != nil {
		return Transaction{}, 0, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = now() WHERE user_id = $1`, original.UserID, balance); err != nil {
		return Transaction{}, 0, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, 0, err
	}
	return refund, balance, nil
}

// ByReference fetches the transaction correlated with a provider reference.
func (l *PostgresLedger) ByReference(ctx context.Context, providerReference string) (Transaction, error) {
	row := l.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE provider_reference = $1`, providerReference)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, err
}

// Transactions lists a user's transaction history, newest first.
func (l *PostgresLedger) Transactions(ctx context.Context, userID string, limit, offset int) ([]Transaction, int, error) {
	if limit <= 0 {
		limit = 20
	}

	var total int
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := l.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, tx)
	}
	return out, total, rows.Err()
}

// Reconcile recomputes the settled net for the user and pairs it with the
// cached balance.
func (l *PostgresLedger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}

	const query = `
        SELECT COALESCE(SUM(CASE WHEN type = 'QRIS_PAYMENT' THEN -amount ELSE amount END), 0)
        FROM transactions
        WHERE user_id = $1 AND status = 'SUCCESS'`
	var net int64
	if err := l.db.QueryRow(ctx, query, userID).Scan(&net); err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{UserID: userID, WalletBalance: balance, SettledNet: net}, nil
}

func walletForUpdate(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	return balance, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var (
		tx        Transaction
		id        uuid.UUID
		userID    uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &userID, &tx.Type, &tx.Status, &tx.Amount, &tx.ProviderKind,
		&tx.ProviderReference, &tx.Description, &tx.Mode, &createdAt, &updatedAt)
	if err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.UserID = userID.String()
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	return tx, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
