package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]*Wallet // by wallet ID
	byOwner      map[string]string  // owner ID -> wallet ID
	byNumber     map[string]string  // wallet number -> wallet ID
	transactions map[string]*Transaction
	byReference  map[string]string // reference -> transaction ID
	byWallet     map[string][]string
}

// NewInMemory creates a concurrency-safe in-memory store with the same
// semantics as the Postgres backend, useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:      make(map[string]*Wallet),
		byOwner:      make(map[string]string),
		byNumber:     make(map[string]string),
		transactions: make(map[string]*Transaction),
		byReference:  make(map[string]string),
		byWallet:     make(map[string][]string),
	}
}

func (s *inMemoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byOwner[w.OwnerID]; exists {
		return ErrDuplicateReference
	}
	if _, exists := s.byNumber[w.WalletNumber]; exists {
		return ErrDuplicateReference
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	cp := w
	s.wallets[w.ID] = &cp
	s.byOwner[w.OwnerID] = w.ID
	s.byNumber[w.WalletNumber] = w.ID
	return nil
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *s.wallets[id], nil
}

func (s *inMemoryStore) WalletByNumber(_ context.Context, number string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *s.wallets[id], nil
}

func (s *inMemoryStore) CreatePending(_ context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byReference[tx.Reference]; exists {
		return ErrDuplicateReference
	}
	if _, ok := s.wallets[tx.WalletID]; !ok {
		return ErrWalletNotFound
	}
	s.insertLocked(tx)
	return nil
}

// insertLocked stores a copy of tx; the caller holds the write lock.
func (s *inMemoryStore) insertLocked(tx Transaction) Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	tx.Metadata = copyMeta(tx.Metadata)
	cp := tx
	s.transactions[tx.ID] = &cp
	s.byReference[tx.Reference] = tx.ID
	s.byWallet[tx.WalletID] = append(s.byWallet[tx.WalletID], tx.ID)
	return tx
}

func (s *inMemoryStore) TransactionByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return snapshot(s.transactions[id]), nil
}

func (s *inMemoryStore) History(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	ids := s.byWallet[walletID]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, snapshot(s.transactions[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) SettleDeposit(_ context.Context, reference string, meta map[string]string) (SettleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byReference[reference]
	if !ok {
		return SettleResult{}, ErrTransactionNotFound
	}
	tx := s.transactions[id]
	w := s.wallets[tx.WalletID]

	if tx.Status != StatusPending {
		return SettleResult{Transaction: snapshot(tx), Credited: false, Balance: w.Balance}, nil
	}

	tx.Status = StatusSuccess
	mergeMeta(tx, meta)
	w.Balance += tx.Amount

	return SettleResult{Transaction: snapshot(tx), Credited: true, Balance: w.Balance}, nil
}

func (s *inMemoryStore) FailDeposit(_ context.Context, reference string, meta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byReference[reference]
	if !ok {
		return ErrTransactionNotFound
	}
	tx := s.transactions[id]
	if tx.Status != StatusPending {
		return nil
	}
	tx.Status = StatusFailed
	mergeMeta(tx, meta)
	return nil
}

func (s *inMemoryStore) Transfer(_ context.Context, in TransferInput) (TransferResult, error) {
	if in.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sender, ok := s.wallets[in.SenderWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	recipientID, ok := s.byNumber[in.RecipientWalletNumber]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if recipientID == sender.ID {
		return TransferResult{}, ErrSelfTransfer
	}
	if sender.Balance < in.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}
	recipient := s.wallets[recipientID]

	now := time.Now().UTC()
	debit := s.insertLocked(Transaction{
		WalletID:              sender.ID,
		Kind:                  KindTransfer,
		Amount:                -in.Amount,
		Status:                StatusSuccess,
		Reference:             in.DebitReference,
		SenderWalletNumber:    sender.WalletNumber,
		RecipientWalletNumber: recipient.WalletNumber,
		Metadata:              map[string]string{"type": "debit", "recipient": recipient.WalletNumber, "initiated_by": in.InitiatedBy},
		CreatedAt:             now,
	})
	credit := s.insertLocked(Transaction{
		WalletID:              recipient.ID,
		Kind:                  KindTransfer,
		Amount:                in.Amount,
		Status:                StatusSuccess,
		Reference:             in.CreditReference,
		SenderWalletNumber:    sender.WalletNumber,
		RecipientWalletNumber: recipient.WalletNumber,
		Metadata:              map[string]string{"type": "credit", "sender": sender.WalletNumber, "initiated_by": in.InitiatedBy},
		CreatedAt:             now,
	})

	sender.Balance -= in.Amount
	recipient.Balance += in.Amount

	return TransferResult{
		DebitTransaction:  debit,
		CreditTransaction: credit,
		SenderBalance:     sender.Balance,
		RecipientBalance:  recipient.Balance,
	}, nil
}

func snapshot(tx *Transaction) Transaction {
	cp := *tx
	cp.Metadata = copyMeta(tx.Metadata)
	return cp
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func mergeMeta(tx *Transaction, meta map[string]string) {
	if len(meta) == 0 {
		return
	}
	if tx.Metadata == nil {
		tx.Metadata = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		tx.Metadata[k] = v
	}
}
