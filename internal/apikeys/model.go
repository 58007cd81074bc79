package apikeys

import "time"

const (
	// PermissionDeposit allows initiating deposits.
	PermissionDeposit = "deposit"
	// PermissionTransfer allows wallet-to-wallet transfers.
	PermissionTransfer = "transfer"
	// PermissionRead allows balance, history and status lookups.
	PermissionRead = "read"
)

// Key is a stored API credential. The plain secret is shown once at creation;
// only its bcrypt hash and a SHA-256 fingerprint are persisted. The
// fingerprint is not secret-grade and exists purely so validation can find
// the one candidate row to run the slow hash against.
type Key struct {
	ID          string
	UserID      string
	Name        string
	Fingerprint string
	KeyHash     []byte
	Permissions []string
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
}

// Active reports whether the key is neither revoked nor expired at t.
func (k Key) Active(t time.Time) bool {
	return !k.Revoked && k.ExpiresAt.After(t)
}

// HasPermission reports whether the key carries the named permission.
func (k Key) HasPermission(perm string) bool {
	for _, p := range k.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// ValidPermissions reports whether every entry is a known permission and the
// set is non-empty.
func ValidPermissions(perms []string) bool {
	if len(perms) == 0 {
		return false
	}
	for _, p := range perms {
		switch p {
		case PermissionDeposit, PermissionTransfer, PermissionRead:
		default:
			return false
		}
	}
	return true
}
