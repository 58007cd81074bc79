package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWalletNotFound occurs when no wallet matches the requested owner,
	// identifier or wallet number.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound occurs when no transaction matches the requested
	// reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInsufficientFunds occurs when the sender wallet lacks available
	// balance to cover a requested transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer occurs when the destination wallet number resolves to
	// the sender's own wallet.
	ErrSelfTransfer = errors.New("cannot transfer to own wallet")

	// ErrInvalidAmount occurs when a posting amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrDuplicateReference indicates the transaction reference already
	// exists; references are unique across the whole ledger.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
)

const (
	// KindDeposit marks a transaction created by the deposit flow.
	KindDeposit = "deposit"
	// KindTransfer marks a transaction created by the transfer flow.
	KindTransfer = "transfer"

	// StatusPending is the initial state of a deposit awaiting provider
	// confirmation.
	StatusPending = "pending"
	// StatusSuccess is the terminal state of a settled transaction. Only
	// success rows contribute to wallet balances.
	StatusSuccess = "success"
	// StatusFailed is the terminal state of a deposit the provider reported
	// as failed.
	StatusFailed = "failed"
)

// Wallet is a stored-value account owned by exactly one user and addressable
// externally by its wallet number. Balance is held in minor currency units
// and is only ever adjusted inside SettleDeposit and Transfer.
type Wallet struct {
	ID           string
	OwnerID      string
	WalletNumber string
	Balance      int64
	CreatedAt    time.Time
}

// Transaction is an immutable ledger row describing one signed balance effect
// against one wallet. Status is the single mutable field and moves
// pending -> success or pending -> failed, never out of a terminal state.
type Transaction struct {
	ID                    string
	WalletID              string
	Kind                  string
	Amount                int64 // signed minor units, negative for debits
	Status                string
	Reference             string
	SenderWalletNumber    string
	RecipientWalletNumber string
	Metadata              map[string]string
	CreatedAt             time.Time
}

// SettleResult reports the outcome of a deposit settlement attempt. Credited
// is false when the event was a no-op against an already-terminal row.
type SettleResult struct {
	Transaction Transaction
	Credited    bool
	Balance     int64
}

// TransferInput carries the data needed to move funds between two wallets.
// References are pre-generated so each leg carries its own unique reference.
type TransferInput struct {
	SenderWalletID        string
	RecipientWalletNumber string
	Amount                int64
	DebitReference        string
	CreditReference       string
	InitiatedBy           string
}

// TransferResult reports the committed outcome of a transfer.
type TransferResult struct {
	DebitTransaction  Transaction
	CreditTransaction Transaction
	SenderBalance     int64
	RecipientBalance  int64
}

// Store is the contract implemented by ledger backends (Postgres in
// production, in-memory for tests). SettleDeposit and Transfer are the only
// operations that mutate balances; both commit atomically or not at all.
type Store interface {
	CreateWallet(ctx context.Context, w Wallet) error
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	WalletByNumber(ctx context.Context, number string) (Wallet, error)

	// CreatePending records a deposit transaction in pending state. No
	// balance effect occurs; the row reserves the reference so a later
	// provider event can settle it.
	CreatePending(ctx context.Context, tx Transaction) error

	TransactionByReference(ctx context.Context, reference string) (Transaction, error)

	// History returns the wallet's transactions ordered newest first.
	History(ctx context.Context, walletID string, limit int) ([]Transaction, error)

	// SettleDeposit flips a pending deposit to success and credits the
	// owning wallet by the booked amount, as one atomic unit. Settling an
	// already-terminal transaction is a no-op, not an error.
	SettleDeposit(ctx context.Context, reference string, meta map[string]string) (SettleResult, error)

	// FailDeposit flips a pending deposit to failed without any balance
	// effect. Terminal transactions are left untouched.
	FailDeposit(ctx context.Context, reference string, meta map[string]string) error

	// Transfer debits the sender, credits the recipient and appends one
	// success row per wallet, all in a single atomic unit. Both wallets stay
	// locked for the duration so the balance check cannot be invalidated by
	// a concurrent mutation.
	Transfer(ctx context.Context, in TransferInput) (TransferResult, error)
}
