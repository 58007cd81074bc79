package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyPrefix     = "sk_live_"
	maxActiveKeys = 5
)

var (
	// ErrInvalidKey indicates the presented secret matched no stored key or
	// failed hash verification.
	ErrInvalidKey = errors.New("invalid api key")
	// ErrKeyRevoked indicates the matched key has been revoked.
	ErrKeyRevoked = errors.New("api key has been revoked")
	// ErrKeyExpired indicates the matched key is past its expiry.
	ErrKeyExpired = errors.New("api key has expired")
	// ErrTooManyKeys indicates the per-user active key cap was reached.
	ErrTooManyKeys = fmt.Errorf("maximum of %d active api keys allowed", maxActiveKeys)
	// ErrKeyNotExpired indicates a rollover was requested for a key that is
	// still valid.
	ErrKeyNotExpired = errors.New("api key is not expired yet")
	// ErrInvalidExpiry indicates an unknown expiry bucket.
	ErrInvalidExpiry = errors.New("invalid expiry format")
	// ErrInvalidPermissions indicates an empty or unknown permission set.
	ErrInvalidPermissions = errors.New("invalid permissions")
)

// Service issues and validates scoped API keys. Validation is indexed: the
// presented secret's SHA-256 fingerprint selects a single candidate row and
// bcrypt comparison runs only against that candidate.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds an API key service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateInput captures the data required to issue a key.
type CreateInput struct {
	UserID      string
	Name        string
	Permissions []string
	Expiry      string // one of 1h, 1d, 30d, 1y
}

// Issued is returned once at creation time; the plain secret is never
// recoverable afterwards.
type Issued struct {
	ID        string
	PlainKey  string
	ExpiresAt time.Time
}

// Create issues a new API key for the user.
func (s *Service) Create(ctx context.Context, input CreateInput) (Issued, error) {
	if !ValidPermissions(input.Permissions) {
		return Issued{}, ErrInvalidPermissions
	}
	ttl, err := expiryTTL(input.Expiry)
	if err != nil {
		return Issued{}, err
	}
	if err := s.checkActiveCap(ctx, input.UserID); err != nil {
		return Issued{}, err
	}
	return s.issue(ctx, input.UserID, input.Name, input.Permissions, ttl)
}

// Rollover replaces an expired key with a fresh one carrying the same name
// and permissions. The old key must actually be expired.
func (s *Service) Rollover(ctx context.Context, userID, expiredKeyID, expiry string) (Issued, error) {
	ttl, err := expiryTTL(expiry)
	if err != nil {
		return Issued{}, err
	}
	old, err := s.repo.FindByID(ctx, userID, expiredKeyID)
	if err != nil {
		return Issued{}, err
	}
	if old.ExpiresAt.After(s.now()) {
		return Issued{}, ErrKeyNotExpired
	}
	if err := s.checkActiveCap(ctx, userID); err != nil {
		return Issued{}, err
	}
	return s.issue(ctx, userID, old.Name, old.Permissions, ttl)
}

// Validate resolves a presented secret to its owning user and permission set.
func (s *Service) Validate(ctx context.Context, plainKey string) (Key, error) {
	key, err := s.repo.FindByFingerprint(ctx, Fingerprint(plainKey))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return Key{}, ErrInvalidKey
		}
		return Key{}, err
	}
	// The fingerprint is an index, not a proof: the slow hash comparison is
	// still required.
	if err := bcrypt.CompareHashAndPassword(key.KeyHash, []byte(plainKey)); err != nil {
		return Key{}, ErrInvalidKey
	}
	if key.Revoked {
		return Key{}, ErrKeyRevoked
	}
	if !key.ExpiresAt.After(s.now()) {
		return Key{}, ErrKeyExpired
	}
	return key, nil
}

// List returns the user's keys, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Key, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Revoke marks a key revoked.
func (s *Service) Revoke(ctx context.Context, userID, id string) error {
	return s.repo.Revoke(ctx, userID, id)
}

func (s *Service) issue(ctx context.Context, userID, name string, perms []string, ttl time.Duration) (Issued, error) {
	plain, err := generateKey()
	if err != nil {
		return Issued{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return Issued{}, err
	}

	now := s.now().UTC()
	key := Key{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Fingerprint: Fingerprint(plain),
		KeyHash:     hash,
		Permissions: perms,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return Issued{}, err
	}
	return Issued{ID: key.ID, PlainKey: plain, ExpiresAt: key.ExpiresAt}, nil
}

func (s *Service) checkActiveCap(ctx context.Context, userID string) error {
	keys, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	active := 0
	now := s.now()
	for _, k := range keys {
		if k.Active(now) {
			active++
		}
	}
	if active >= maxActiveKeys {
		return ErrTooManyKeys
	}
	return nil
}

// Fingerprint derives the non-secret lookup index for a plain secret.
func Fingerprint(plainKey string) string {
	sum := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(sum[:])
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

func expiryTTL(expiry string) (time.Duration, error) {
	switch expiry {
	case "1h":
		return time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "30d":
		return 30 * 24 * time.Hour, nil
	case "1y":
		return 365 * 24 * time.Hour, nil
	default:
		return 0, ErrInvalidExpiry
	}
}
