package identity

import "time"

// User represents a registered wallet owner, established through Google
// sign-in.
type User struct {
	ID        string
	GoogleID  string
	Email     string
	Name      string
	Picture   string
	CreatedAt time.Time
}

// Profile carries the identity attributes returned by the OAuth provider.
type Profile struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}
