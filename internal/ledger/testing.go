package ledger

// SeedBalance is a test helper that sets the wallet balance directly when
// using the in-memory ledger.
func SeedBalance(l Ledger, userID string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[userID] = amount
	}
}
