package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets and transactions in PostgreSQL. Balance
// mutations run inside explicit transactions holding row locks on every
// wallet they touch, so concurrent protocols against the same wallet
// serialize while disjoint wallet pairs proceed independently.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateWallet inserts a wallet row. Uniqueness on owner and wallet number is
// enforced by the schema.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return err
	}
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, wallet_number, balance, created_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, ownerID, w.WalletNumber, w.Balance, createdAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

const walletColumns = `id, owner_id, wallet_number, balance, created_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		ownerID   uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &ownerID, &w.WalletNumber, &w.Balance, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

// WalletByOwner fetches the wallet owned by the given user.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	return scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, owner))
}

// WalletByNumber fetches a wallet by its public wallet number.
func (s *PostgresStore) WalletByNumber(ctx context.Context, number string) (Wallet, error) {
	return scanWallet(s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE wallet_number = $1`, number))
}

// CreatePending records a deposit transaction awaiting settlement.
func (s *PostgresStore) CreatePending(ctx context.Context, tx Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	txID, err := uuid.Parse(tx.ID)
	if err != nil {
		return err
	}
	walletID, err := uuid.Parse(tx.WalletID)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(metaOrEmpty(tx.Metadata))
	if err != nil {
		return err
	}
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO transactions
        (id, wallet_id, kind, amount, status, reference, sender_wallet_number, recipient_wallet_number, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txID, walletID, tx.Kind, tx.Amount, StatusPending, tx.Reference,
		tx.SenderWalletNumber, tx.RecipientWalletNumber, meta, createdAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

const txColumns = `id, wallet_id, kind, amount, status, reference,
        COALESCE(sender_wallet_number, ''), COALESCE(recipient_wallet_number, ''), metadata, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t         Transaction
		id        uuid.UUID
		walletID  uuid.UUID
		meta      []byte
		createdAt time.Time
	)
	err := row.Scan(&id, &walletID, &t.Kind, &t.Amount, &t.Status, &t.Reference,
		&t.SenderWalletNumber, &t.RecipientWalletNumber, &meta, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	t.ID = id.String()
	t.WalletID = walletID.String()
	t.CreatedAt = createdAt.UTC()
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return t, nil
}

// TransactionByReference fetches a transaction by its unique reference.
func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE reference = $1`, reference))
}

// History returns the wallet's transactions ordered newest first.
func (s *PostgresStore) History(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SettleDeposit atomically flips a pending deposit to success and credits the
// owning wallet by the booked amount. The transaction row is locked first so
// duplicate provider deliveries serialize; terminal rows are left untouched.
func (s *PostgresStore) SettleDeposit(ctx context.Context, reference string, meta map[string]string) (SettleResult, error) {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettleResult{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	t, err := scanTransaction(dbtx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return SettleResult{}, err
	}

	walletID, err := uuid.Parse(t.WalletID)
	if err != nil {
		return SettleResult{}, err
	}

	if t.Status != StatusPending {
		var balance int64
		if err := dbtx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance); err != nil {
			return SettleResult{}, err
		}
		return SettleResult{Transaction: t, Credited: false, Balance: balance}, dbtx.Commit(ctx)
	}

	var balance int64
	if err := dbtx.QueryRow(ctx, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance); err != nil {
		return SettleResult{}, err
	}

	metaJSON, err := json.Marshal(metaOrEmpty(meta))
	if err != nil {
		return SettleResult{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET status = $1, metadata = metadata || $2 WHERE reference = $3`,
		StatusSuccess, metaJSON, reference); err != nil {
		return SettleResult{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2`, t.Amount, walletID); err != nil {
		return SettleResult{}, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return SettleResult{}, err
	}

	t.Status = StatusSuccess
	if t.Metadata == nil {
		t.Metadata = make(map[string]string, len(meta))
	}
	for k, v := range meta {
		t.Metadata[k] = v
	}
	return SettleResult{Transaction: t, Credited: true, Balance: balance + t.Amount}, nil
}

// FailDeposit marks a pending deposit as failed. No balance effect.
func (s *PostgresStore) FailDeposit(ctx context.Context, reference string, meta map[string]string) error {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	var status string
	if err := dbtx.QueryRow(ctx, `SELECT status FROM transactions WHERE reference = $1 FOR UPDATE`, reference).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		return err
	}
	if status != StatusPending {
		return dbtx.Commit(ctx)
	}

	metaJSON, err := json.Marshal(metaOrEmpty(meta))
	if err != nil {
		return err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET status = $1, metadata = metadata || $2 WHERE reference = $3`,
		StatusFailed, metaJSON, reference); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

// Transfer executes the atomic two-wallet protocol. Both wallet rows are
// locked by a single statement in ascending ID order, so opposing transfers
// between the same pair cannot deadlock.
func (s *PostgresStore) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.Amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	senderID, err := uuid.Parse(in.SenderWalletID)
	if err != nil {
		return TransferResult{}, ErrWalletNotFound
	}

	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	rows, err := dbtx.Query(ctx, `SELECT `+walletColumns+` FROM wallets
        WHERE id = $1 OR wallet_number = $2 ORDER BY id FOR UPDATE`, senderID, in.RecipientWalletNumber)
	if err != nil {
		return TransferResult{}, err
	}
	var sender, recipient Wallet
	var haveSender, haveRecipient bool
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			rows.Close()
			return TransferResult{}, err
		}
		if w.ID == in.SenderWalletID {
			sender = w
			haveSender = true
		}
		if w.WalletNumber == in.RecipientWalletNumber {
			recipient = w
			haveRecipient = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return TransferResult{}, err
	}

	if !haveSender || !haveRecipient {
		return TransferResult{}, ErrWalletNotFound
	}
	if sender.ID == recipient.ID {
		return TransferResult{}, ErrSelfTransfer
	}
	if sender.Balance < in.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	debit := Transaction{
		ID:                    uuid.NewString(),
		WalletID:              sender.ID,
		Kind:                  KindTransfer,
		Amount:                -in.Amount,
		Status:                StatusSuccess,
		Reference:             in.DebitReference,
		SenderWalletNumber:    sender.WalletNumber,
		RecipientWalletNumber: recipient.WalletNumber,
		Metadata:              map[string]string{"type": "debit", "recipient": recipient.WalletNumber, "initiated_by": in.InitiatedBy},
		CreatedAt:             now,
	}
	credit := Transaction{
		ID:                    uuid.NewString(),
		WalletID:              recipient.ID,
		Kind:                  KindTransfer,
		Amount:                in.Amount,
		Status:                StatusSuccess,
		Reference:             in.CreditReference,
		SenderWalletNumber:    sender.WalletNumber,
		RecipientWalletNumber: recipient.WalletNumber,
		Metadata:              map[string]string{"type": "credit", "sender": sender.WalletNumber, "initiated_by": in.InitiatedBy},
		CreatedAt:             now,
	}

	for _, t := range []Transaction{debit, credit} {
		meta, err := json.Marshal(t.Metadata)
		if err != nil {
			return TransferResult{}, err
		}
		if _, err := dbtx.Exec(ctx, `INSERT INTO transactions
            (id, wallet_id, kind, amount, status, reference, sender_wallet_number, recipient_wallet_number, metadata, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.MustParse(t.ID), uuid.MustParse(t.WalletID), t.Kind, t.Amount, t.Status, t.Reference,
			t.SenderWalletNumber, t.RecipientWalletNumber, meta, t.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return TransferResult{}, ErrDuplicateReference
			}
			return TransferResult{}, err
		}
	}

	if _, err := dbtx.Exec(ctx, `UPDATE wallets SET balance = balance - $1 WHERE id = $2`, in.Amount, senderID); err != nil {
		return TransferResult{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2`, in.Amount, uuid.MustParse(recipient.ID)); err != nil {
		return TransferResult{}, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		DebitTransaction:  debit,
		CreditTransaction: credit,
		SenderBalance:     sender.Balance - in.Amount,
		RecipientBalance:  recipient.Balance + in.Amount,
	}, nil
}

func metaOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
