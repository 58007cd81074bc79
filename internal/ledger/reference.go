package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	// DepositRefPrefix prefixes deposit references shared with the payment
	// provider.
	DepositRefPrefix = "dep"
	// TransferRefPrefix prefixes transfer leg references.
	TransferRefPrefix = "txf"

	// WalletNumberLength is the fixed length of public wallet numbers.
	WalletNumberLength = 13
)

// NewReference produces a globally unique, unguessable reference of the form
// <prefix>_<unix-millis>_<16 hex chars>. The timestamp keeps references
// roughly sortable; the random suffix makes them unguessable.
func NewReference(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("ledger: read random bytes: %v", err))
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}

var walletNumberSpan = new(big.Int).SetInt64(9_000_000_000_000)

// NewWalletNumber generates a 13-digit wallet number. Uniqueness is enforced
// by the store; callers retry on conflict.
func NewWalletNumber() string {
	n, err := rand.Int(rand.Reader, walletNumberSpan)
	if err != nil {
		panic(fmt.Sprintf("ledger: read random bytes: %v", err))
	}
	return fmt.Sprintf("%d", n.Int64()+1_000_000_000_000)
}

// ValidWalletNumber reports whether s is a well-formed wallet number:
// exactly 13 digits.
func ValidWalletNumber(s string) bool {
	if len(s) != WalletNumberLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
