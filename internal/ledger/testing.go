package ledger

// SeedBalance is a test helper that sets a wallet's balance directly when
// using the in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.wallets[walletID]; exists {
			w.Balance = amount
		}
	}
}

// SumSuccess is a test helper that returns the sum of success-status
// transaction amounts booked against a wallet in the in-memory store.
func SumSuccess(s Store, walletID string) int64 {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return 0
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var total int64
	for _, id := range mem.byWallet[walletID] {
		if tx := mem.transactions[id]; tx.Status == StatusSuccess {
			total += tx.Amount
		}
	}
	return total
}
