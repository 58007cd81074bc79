package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema idempotently at startup. Uniqueness on wallet
// owner, wallet number and transaction reference backs the ledger's
// correctness guarantees; the reference index keeps reconciliation lookups
// O(log n).
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            google_id TEXT UNIQUE NOT NULL,
            email TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            picture TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS wallets (
            id UUID PRIMARY KEY,
            owner_id UUID UNIQUE NOT NULL REFERENCES users(id),
            wallet_number VARCHAR(13) UNIQUE NOT NULL,
            balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id UUID PRIMARY KEY,
            wallet_id UUID NOT NULL REFERENCES wallets(id),
            kind TEXT NOT NULL,
            amount BIGINT NOT NULL,
            status TEXT NOT NULL,
            reference TEXT UNIQUE NOT NULL,
            sender_wallet_number VARCHAR(13),
            recipient_wallet_number VARCHAR(13),
            metadata JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_wallet_created
            ON transactions (wallet_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id),
            name TEXT NOT NULL,
            fingerprint TEXT UNIQUE NOT NULL,
            key_hash BYTEA NOT NULL,
            permissions TEXT[] NOT NULL,
            expires_at TIMESTAMPTZ NOT NULL,
            is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
