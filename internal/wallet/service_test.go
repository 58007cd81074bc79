package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kudi-wallet/kudi_wallet/internal/ledger"
	"github.com/kudi-wallet/kudi_wallet/internal/logging"
	"github.com/kudi-wallet/kudi_wallet/internal/paystack"
)

type rejectingProvider struct{}

func (rejectingProvider) InitializeTransaction(context.Context, string, int64, string) (paystack.Authorization, error) {
	return paystack.Authorization{}, paystack.ErrProviderRejected
}

func (rejectingProvider) VerifySignature([]byte, string) bool { return true }

func newTestService(t *testing.T, provider paystack.Provider) (*Service, ledger.Store, ledger.Wallet) {
	t.Helper()
	store := ledger.NewInMemory()
	w := ledger.Wallet{
		ID:           uuid.NewString(),
		OwnerID:      uuid.NewString(),
		WalletNumber: ledger.NewWalletNumber(),
	}
	if err := store.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return NewService(store, provider, nil, logging.Discard()), store, w
}

func TestInitiateDepositCreatesPendingRow(t *testing.T) {
	ctx := context.Background()
	svc, store, w := newTestService(t, paystack.StaticProvider{})

	intent, err := svc.InitiateDeposit(ctx, DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 5_000})
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}
	if intent.AuthorizationURL == "" {
		t.Fatal("expected authorization url")
	}

	tx, err := store.TransactionByReference(ctx, intent.Reference)
	if err != nil {
		t.Fatalf("lookup reference: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected pending status, got %s", tx.Status)
	}
	if tx.Amount != 5_000 {
		t.Fatalf("expected booked amount 5000, got %d", tx.Amount)
	}

	got, err := store.WalletByOwner(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("wallet by owner: %v", err)
	}
	if got.Balance != 0 {
		t.Fatalf("pending deposit must not move the balance, got %d", got.Balance)
	}
}

func TestInitiateDepositBelowMinimum(t *testing.T) {
	svc, _, w := newTestService(t, paystack.StaticProvider{})

	if _, err := svc.InitiateDeposit(context.Background(), DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 99}); !errors.Is(err, ErrDepositBelowMinimum) {
		t.Fatalf("expected minimum error, got %v", err)
	}
}

func TestInitiateDepositProviderFailureKeepsPendingRow(t *testing.T) {
	ctx := context.Background()
	svc, store, w := newTestService(t, rejectingProvider{})

	_, err := svc.InitiateDeposit(ctx, DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 1_000})
	if !errors.Is(err, paystack.ErrProviderRejected) {
		t.Fatalf("expected provider error, got %v", err)
	}

	history, err := store.History(ctx, w.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected the pending row to survive, got %d rows", len(history))
	}
	if history[0].Status != ledger.StatusPending {
		t.Fatalf("expected pending row, got %s", history[0].Status)
	}
}

func TestWebhookCreditsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	svc, store, w := newTestService(t, paystack.StaticProvider{})

	intent, err := svc.InitiateDeposit(ctx, DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 2_500})
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}

	event := paystack.Event{Event: paystack.EventChargeSuccess}
	event.Data.Reference = intent.Reference
	event.Data.Amount = 2_500
	event.Data.Status = "success"

	for i := 0; i < 3; i++ {
		if err := svc.HandleWebhook(ctx, event); err != nil {
			t.Fatalf("webhook delivery %d: %v", i, err)
		}
	}

	got, err := store.WalletByOwner(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("wallet by owner: %v", err)
	}
	if got.Balance != 2_500 {
		t.Fatalf("expected balance 2500 after repeated deliveries, got %d", got.Balance)
	}
}

func TestWebhookUnknownReferenceIsNoOp(t *testing.T) {
	svc, _, _ := newTestService(t, paystack.StaticProvider{})

	event := paystack.Event{Event: paystack.EventChargeSuccess}
	event.Data.Reference = "dep_000_deadbeef"
	event.Data.Status = "success"

	if err := svc.HandleWebhook(context.Background(), event); err != nil {
		t.Fatalf("unknown reference must be discarded silently: %v", err)
	}
}

func TestWebhookAmountMismatchCreditsBookedAmount(t *testing.T) {
	ctx := context.Background()
	svc, store, w := newTestService(t, paystack.StaticProvider{})

	intent, err := svc.InitiateDeposit(ctx, DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 1_000})
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}

	event := paystack.Event{Event: paystack.EventChargeSuccess}
	event.Data.Reference = intent.Reference
	event.Data.Amount = 9_999
	event.Data.Status = "success"

	if err := svc.HandleWebhook(ctx, event); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	got, _ := store.WalletByOwner(ctx, w.OwnerID)
	if got.Balance != 1_000 {
		t.Fatalf("booked amount is authoritative, got balance %d", got.Balance)
	}
	tx, _ := store.TransactionByReference(ctx, intent.Reference)
	if tx.Metadata["provider_amount"] != "9999" {
		t.Fatalf("expected provider amount recorded, got %q", tx.Metadata["provider_amount"])
	}
}

func TestWebhookFailedChargeNeverCredits(t *testing.T) {
	ctx := context.Background()
	svc, store, w := newTestService(t, paystack.StaticProvider{})

	intent, err := svc.InitiateDeposit(ctx, DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 1_000})
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}

	failed := paystack.Event{Event: paystack.EventChargeFailed}
	failed.Data.Reference = intent.Reference
	failed.Data.Status = "failed"
	if err := svc.HandleWebhook(ctx, failed); err != nil {
		t.Fatalf("failed event: %v", err)
	}

	// A success delivered after the failure must not resurrect the row.
	succeeded := paystack.Event{Event: paystack.EventChargeSuccess}
	succeeded.Data.Reference = intent.Reference
	succeeded.Data.Status = "success"
	if err := svc.HandleWebhook(ctx, succeeded); err != nil {
		t.Fatalf("late success event: %v", err)
	}

	got, _ := store.WalletByOwner(ctx, w.OwnerID)
	if got.Balance != 0 {
		t.Fatalf("failed deposit must not credit, got %d", got.Balance)
	}
	tx, _ := store.TransactionByReference(ctx, intent.Reference)
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("expected failed status, got %s", tx.Status)
	}
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	ctx := context.Background()
	svc, store, sender := newTestService(t, paystack.StaticProvider{})

	recipient := ledger.Wallet{
		ID:           uuid.NewString(),
		OwnerID:      uuid.NewString(),
		WalletNumber: ledger.NewWalletNumber(),
	}
	if err := store.CreateWallet(ctx, recipient); err != nil {
		t.Fatalf("create recipient: %v", err)
	}
	ledger.SeedBalance(store, sender.ID, 10_000)

	res, err := svc.Transfer(ctx, TransferInput{OwnerID: sender.OwnerID, WalletNumber: recipient.WalletNumber, Amount: 4_000})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.SenderBalance != 6_000 {
		t.Fatalf("expected sender balance 6000, got %d", res.SenderBalance)
	}
	if res.DebitReference == res.CreditReference {
		t.Fatal("each leg must carry its own reference")
	}

	got, _ := store.WalletByNumber(ctx, recipient.WalletNumber)
	if got.Balance != 4_000 {
		t.Fatalf("expected recipient balance 4000, got %d", got.Balance)
	}
}

func TestTransferRejectsMalformedWalletNumber(t *testing.T) {
	svc, _, sender := newTestService(t, paystack.StaticProvider{})

	_, err := svc.Transfer(context.Background(), TransferInput{OwnerID: sender.OwnerID, WalletNumber: "12345", Amount: 100})
	if !errors.Is(err, ErrInvalidWalletNumber) {
		t.Fatalf("expected wallet number error, got %v", err)
	}
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	svc, _, sender := newTestService(t, paystack.StaticProvider{})

	_, err := svc.Transfer(context.Background(), TransferInput{OwnerID: sender.OwnerID, WalletNumber: ledger.NewWalletNumber(), Amount: 0})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected amount error, got %v", err)
	}
}

func TestDepositStatusScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc, store, w := newTestService(t, paystack.StaticProvider{})

	intent, err := svc.InitiateDeposit(ctx, DepositInput{OwnerID: w.OwnerID, Email: "a@b.test", Amount: 1_000})
	if err != nil {
		t.Fatalf("initiate deposit: %v", err)
	}

	tx, err := svc.DepositStatus(ctx, w.OwnerID, intent.Reference)
	if err != nil {
		t.Fatalf("deposit status: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}

	other := ledger.Wallet{
		ID:           uuid.NewString(),
		OwnerID:      uuid.NewString(),
		WalletNumber: ledger.NewWalletNumber(),
	}
	if err := store.CreateWallet(ctx, other); err != nil {
		t.Fatalf("create other wallet: %v", err)
	}

	if _, err := svc.DepositStatus(ctx, other.OwnerID, intent.Reference); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}
