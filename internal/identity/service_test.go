package identity

import (
	"context"
	"testing"

	"github.com/kudi-wallet/kudi_wallet/internal/ledger"
)

func TestEstablishFromGoogleProvisionsWalletOnce(t *testing.T) {
	repo := NewMemoryRepository()
	store := ledger.NewInMemory()
	svc := NewService(repo, store)

	ctx := context.Background()
	profile := Profile{GoogleID: "google-sub-1", Email: "ada@example.com", Name: "Ada"}

	user, err := svc.EstablishFromGoogle(ctx, profile)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	w, err := store.WalletByOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet by owner: %v", err)
	}
	if !ledger.ValidWalletNumber(w.WalletNumber) {
		t.Fatalf("invalid wallet number %q", w.WalletNumber)
	}
	if w.Balance != 0 {
		t.Fatalf("new wallet must start at zero, got %d", w.Balance)
	}

	// Second sign-in resolves to the same user and wallet.
	again, err := svc.EstablishFromGoogle(ctx, profile)
	if err != nil {
		t.Fatalf("second establish: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected same user, got %s vs %s", again.ID, user.ID)
	}
	w2, err := store.WalletByOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("wallet after second sign-in: %v", err)
	}
	if w2.ID != w.ID {
		t.Fatalf("wallet must be provisioned exactly once")
	}
}

func TestEstablishFromGoogleRejectsEmptyProfile(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	if _, err := svc.EstablishFromGoogle(context.Background(), Profile{}); err == nil {
		t.Fatalf("expected error for empty profile")
	}
}
