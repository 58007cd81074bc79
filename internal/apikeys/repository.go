package apikeys

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrKeyNotFound occurs when no API key matches the lookup.
var ErrKeyNotFound = errors.New("api key not found")

// Repository persists API keys.
type Repository interface {
	Create(ctx context.Context, key Key) error
	FindByID(ctx context.Context, userID, id string) (Key, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (Key, error)
	ListByUser(ctx context.Context, userID string) ([]Key, error)
	Revoke(ctx context.Context, userID, id string) error
}

// PostgresRepository stores API keys in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed API key repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an API key record.
func (r *PostgresRepository) Create(ctx context.Context, key Key) error {
	id, err := uuid.Parse(key.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(key.UserID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO api_keys
        (id, user_id, name, fingerprint, key_hash, permissions, expires_at, is_revoked, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, userID, key.Name, key.Fingerprint, key.KeyHash, key.Permissions,
		key.ExpiresAt.UTC(), key.Revoked, key.CreatedAt.UTC())
	return err
}

const keyColumns = `id, user_id, name, fingerprint, key_hash, permissions, expires_at, is_revoked, created_at`

func scanKey(row pgx.Row) (Key, error) {
	var (
		k         Key
		id        uuid.UUID
		userID    uuid.UUID
		expiresAt time.Time
		createdAt time.Time
	)
	if err := row.Scan(&id, &userID, &k.Name, &k.Fingerprint, &k.KeyHash, &k.Permissions, &expiresAt, &k.Revoked, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrKeyNotFound
		}
		return Key{}, err
	}
	k.ID = id.String()
	k.UserID = userID.String()
	k.ExpiresAt = expiresAt.UTC()
	k.CreatedAt = createdAt.UTC()
	return k, nil
}

// FindByID fetches a key owned by the given user.
func (r *PostgresRepository) FindByID(ctx context.Context, userID, id string) (Key, error) {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return Key{}, ErrKeyNotFound
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return Key{}, ErrKeyNotFound
	}
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, keyID, owner))
}

// FindByFingerprint fetches the single key matching a secret fingerprint.
func (r *PostgresRepository) FindByFingerprint(ctx context.Context, fingerprint string) (Key, error) {
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE fingerprint = $1`, fingerprint))
}

// ListByUser returns the user's keys, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Key, error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrKeyNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Revoke marks a key revoked, scoped to its owner.
func (r *PostgresRepository) Revoke(ctx context.Context, userID, id string) error {
	keyID, err := uuid.Parse(id)
	if err != nil {
		return ErrKeyNotFound
	}
	owner, err := uuid.Parse(userID)
	if err != nil {
		return ErrKeyNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET is_revoked = TRUE WHERE id = $1 AND user_id = $2`, keyID, owner)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}
