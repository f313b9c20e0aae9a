package ledger

import "context"

// Stats aggregates platform-wide ledger figures for the admin dashboard.
// Volumes count settled (SUCCESS) transactions only, in minor units.
type Stats struct {
	WalletCount       int64
	TotalBalance      int64
	TotalTransactions int64
	ByStatus          map[Status]int64
	TopUpVolume       int64
	PaymentVolume     int64
	RefundVolume      int64
}

// StatsProvider is implemented by ledger backends that can report global
// figures. It is separate from Ledger because user-facing flows never need it.
type StatsProvider interface {
	GlobalStats(ctx context.Context) (Stats, error)
}

func (l *inMemoryLedger) GlobalStats(_ context.Context) (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{ByStatus: map[Status]int64{}}
	stats.WalletCount = int64(len(l.balances))
	for _, balance := range l.balances {
		stats.TotalBalance += balance
	}
	for _, id := range l.order {
		tx := l.records[id]
		stats.TotalTransactions++
		stats.ByStatus[tx.Status]++
		if tx.Status != StatusSuccess {
			continue
		}
		switch tx.Type {
		case TypeTopUp:
			stats.TopUpVolume += tx.Amount
		case TypeQrisPayment:
			stats.PaymentVolume += tx.Amount
		case TypeRefund:
			stats.RefundVolume += tx.Amount
		}
	}
	return stats, nil
}

func (l *PostgresLedger) GlobalStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: map[Status]int64{}}

	err := l.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM wallets`).
		Scan(&stats.WalletCount, &stats.TotalBalance)
	if err != nil {
		return Stats{}, err
	}

	rows, err := l.db.Query(ctx, `SELECT status, COUNT(*) FROM transactions GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.ByStatus[status] = count
		stats.TotalTransactions += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	err = l.db.QueryRow(ctx, `SELECT
        COALESCE(SUM(CASE WHEN type = 'TOPUP' THEN amount ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN type = 'QRIS_PAYMENT' THEN amount ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN type = 'REFUND' THEN amount ELSE 0 END), 0)
        FROM transactions WHERE status = 'SUCCESS'`).
		Scan(&stats.TopUpVolume, &stats.PaymentVolume, &stats.RefundVolume)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}
