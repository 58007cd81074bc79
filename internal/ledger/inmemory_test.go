package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newWallet(t *testing.T, s Store) Wallet {
	t.Helper()
	w := Wallet{
		ID:           uuid.NewString(),
		OwnerID:      uuid.NewString(),
		WalletNumber: NewWalletNumber(),
	}
	if err := s.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func pendingDeposit(t *testing.T, s Store, w Wallet, amount int64) Transaction {
	t.Helper()
	tx := Transaction{
		ID:        uuid.NewString(),
		WalletID:  w.ID,
		Kind:      KindDeposit,
		Amount:    amount,
		Status:    StatusPending,
		Reference: NewReference(DepositRefPrefix),
	}
	if err := s.CreatePending(context.Background(), tx); err != nil {
		t.Fatalf("create pending: %v", err)
	}
	return tx
}

func TestInMemoryStore_SettleDepositCreditsOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newWallet(t, s)
	dep := pendingDeposit(t, s, w, 5_000)

	// First delivery credits the wallet.
	res, err := s.SettleDeposit(ctx, dep.Reference, map[string]string{"provider_status": "success"})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !res.Credited {
		t.Fatalf("expected first settlement to credit")
	}
	if res.Balance != 5_000 {
		t.Fatalf("expected balance 5000, got %d", res.Balance)
	}

	// Redelivery is a silent no-op.
	res, err = s.SettleDeposit(ctx, dep.Reference, map[string]string{"provider_status": "success"})
	if err != nil {
		t.Fatalf("settle redelivery: %v", err)
	}
	if res.Credited {
		t.Fatalf("expected redelivery to be a no-op")
	}
	if res.Balance != 5_000 {
		t.Fatalf("expected balance unchanged at 5000, got %d", res.Balance)
	}

	got, err := s.WalletByOwner(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("wallet by owner: %v", err)
	}
	if got.Balance != 5_000 {
		t.Fatalf("expected stored balance 5000, got %d", got.Balance)
	}
	if sum := SumSuccess(s, w.ID); sum != got.Balance {
		t.Fatalf("balance %d diverged from success-row sum %d", got.Balance, sum)
	}
}

func TestInMemoryStore_SettleDepositUnknownReference(t *testing.T) {
	s := NewInMemory()
	if _, err := s.SettleDeposit(context.Background(), "dep_missing", nil); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestInMemoryStore_FailDepositIsTerminal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newWallet(t, s)
	dep := pendingDeposit(t, s, w, 2_000)

	if err := s.FailDeposit(ctx, dep.Reference, map[string]string{"provider_status": "failed"}); err != nil {
		t.Fatalf("fail deposit: %v", err)
	}

	// A late success event must not revive a failed deposit.
	res, err := s.SettleDeposit(ctx, dep.Reference, nil)
	if err != nil {
		t.Fatalf("settle after fail: %v", err)
	}
	if res.Credited {
		t.Fatalf("failed deposit must never credit")
	}

	got, _ := s.WalletByOwner(ctx, w.OwnerID)
	if got.Balance != 0 {
		t.Fatalf("expected balance 0, got %d", got.Balance)
	}
}

func TestInMemoryStore_TransferMovesFundsAtomically(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	sender := newWallet(t, s)
	recipient := newWallet(t, s)
	SeedBalance(s, sender.ID, 3_000)

	res, err := s.Transfer(ctx, TransferInput{
		SenderWalletID:        sender.ID,
		RecipientWalletNumber: recipient.WalletNumber,
		Amount:                3_000,
		DebitReference:        NewReference(TransferRefPrefix),
		CreditReference:       NewReference(TransferRefPrefix),
		InitiatedBy:           sender.OwnerID,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.SenderBalance != 0 || res.RecipientBalance != 3_000 {
		t.Fatalf("unexpected balances: %+v", res)
	}
	if res.DebitTransaction.Amount != -3_000 || res.CreditTransaction.Amount != 3_000 {
		t.Fatalf("unexpected signed amounts: %d / %d", res.DebitTransaction.Amount, res.CreditTransaction.Amount)
	}
	if res.DebitTransaction.Status != StatusSuccess || res.CreditTransaction.Status != StatusSuccess {
		t.Fatalf("transfer rows must be success")
	}
	if res.DebitTransaction.SenderWalletNumber != sender.WalletNumber ||
		res.DebitTransaction.RecipientWalletNumber != recipient.WalletNumber {
		t.Fatalf("debit row missing audit wallet numbers: %+v", res.DebitTransaction)
	}

	senderHist, _ := s.History(ctx, sender.ID, 0)
	recipientHist, _ := s.History(ctx, recipient.ID, 0)
	if len(senderHist) != 1 || len(recipientHist) != 1 {
		t.Fatalf("expected exactly one row per wallet, got %d and %d", len(senderHist), len(recipientHist))
	}
}

func TestInMemoryStore_TransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	sender := newWallet(t, s)
	recipient := newWallet(t, s)
	SeedBalance(s, sender.ID, 100)

	_, err := s.Transfer(ctx, TransferInput{
		SenderWalletID:        sender.ID,
		RecipientWalletNumber: recipient.WalletNumber,
		Amount:                500,
		DebitReference:        NewReference(TransferRefPrefix),
		CreditReference:       NewReference(TransferRefPrefix),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	sw, _ := s.WalletByOwner(ctx, sender.OwnerID)
	rw, _ := s.WalletByOwner(ctx, recipient.OwnerID)
	if sw.Balance != 100 || rw.Balance != 0 {
		t.Fatalf("balances mutated after failed transfer: %d / %d", sw.Balance, rw.Balance)
	}
	hist, _ := s.History(ctx, sender.ID, 0)
	if len(hist) != 0 {
		t.Fatalf("failed transfer must not append rows, got %d", len(hist))
	}
}

func TestInMemoryStore_TransferToSelfRejected(t *testing.T) {
	s := NewInMemory()
	sender := newWallet(t, s)
	SeedBalance(s, sender.ID, 1_000)

	_, err := s.Transfer(context.Background(), TransferInput{
		SenderWalletID:        sender.ID,
		RecipientWalletNumber: sender.WalletNumber,
		Amount:                10,
		DebitReference:        NewReference(TransferRefPrefix),
		CreditReference:       NewReference(TransferRefPrefix),
	})
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}

	w, _ := s.WalletByOwner(context.Background(), sender.OwnerID)
	if w.Balance != 1_000 {
		t.Fatalf("self-transfer mutated balance: %d", w.Balance)
	}
}

func TestInMemoryStore_TransferUnknownRecipient(t *testing.T) {
	s := NewInMemory()
	sender := newWallet(t, s)
	SeedBalance(s, sender.ID, 1_000)

	_, err := s.Transfer(context.Background(), TransferInput{
		SenderWalletID:        sender.ID,
		RecipientWalletNumber: "9999999999999",
		Amount:                10,
		DebitReference:        NewReference(TransferRefPrefix),
		CreditReference:       NewReference(TransferRefPrefix),
	})
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentTransfersCannotDoubleSpend(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	sender := newWallet(t, s)
	r1 := newWallet(t, s)
	r2 := newWallet(t, s)
	SeedBalance(s, sender.ID, 1_000)

	// Two concurrent transfers of 700 against a balance of 1000: exactly one
	// must succeed.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, dest := range []string{r1.WalletNumber, r2.WalletNumber} {
		wg.Add(1)
		go func(i int, dest string) {
			defer wg.Done()
			_, errs[i] = s.Transfer(ctx, TransferInput{
				SenderWalletID:        sender.ID,
				RecipientWalletNumber: dest,
				Amount:                700,
				DebitReference:        NewReference(TransferRefPrefix),
				CreditReference:       NewReference(TransferRefPrefix),
			})
		}(i, dest)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success and one insufficient-funds, got %d/%d", ok, insufficient)
	}

	sw, _ := s.WalletByOwner(ctx, sender.OwnerID)
	if sw.Balance != 300 {
		t.Fatalf("expected sender balance 300, got %d", sw.Balance)
	}
}

func TestInMemoryStore_ConcurrentDisjointTransfersAllCommit(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	const pairs = 8
	senders := make([]Wallet, pairs)
	recipients := make([]Wallet, pairs)
	for i := 0; i < pairs; i++ {
		senders[i] = newWallet(t, s)
		recipients[i] = newWallet(t, s)
		SeedBalance(s, senders[i].ID, 10_000)
	}

	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Transfer(ctx, TransferInput{
				SenderWalletID:        senders[i].ID,
				RecipientWalletNumber: recipients[i].WalletNumber,
				Amount:                2_500,
				DebitReference:        NewReference(TransferRefPrefix),
				CreditReference:       NewReference(TransferRefPrefix),
			}); err != nil {
				t.Errorf("transfer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < pairs; i++ {
		sw, _ := s.WalletByOwner(ctx, senders[i].OwnerID)
		rw, _ := s.WalletByOwner(ctx, recipients[i].OwnerID)
		if sw.Balance+rw.Balance != 10_000 {
			t.Fatalf("pair %d not balanced: %d + %d", i, sw.Balance, rw.Balance)
		}
	}
}

func TestInMemoryStore_ConcurrentDuplicateWebhookDeliveries(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newWallet(t, s)
	dep := pendingDeposit(t, s, w, 5_000)

	const deliveries = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.SettleDeposit(ctx, dep.Reference, nil)
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			if res.Credited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if credited != 1 {
		t.Fatalf("expected exactly one crediting delivery, got %d", credited)
	}
	got, _ := s.WalletByOwner(ctx, w.OwnerID)
	if got.Balance != 5_000 {
		t.Fatalf("expected balance 5000 after %d deliveries, got %d", deliveries, got.Balance)
	}
}

func TestInMemoryStore_DuplicateReferenceRejected(t *testing.T) {
	s := NewInMemory()
	w := newWallet(t, s)
	dep := pendingDeposit(t, s, w, 1_000)

	err := s.CreatePending(context.Background(), Transaction{
		ID:        uuid.NewString(),
		WalletID:  w.ID,
		Kind:      KindDeposit,
		Amount:    1_000,
		Status:    StatusPending,
		Reference: dep.Reference,
	})
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestInMemoryStore_HistoryNewestFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newWallet(t, s)

	for i := 0; i < 3; i++ {
		dep := pendingDeposit(t, s, w, int64(100*(i+1)))
		if _, err := s.SettleDeposit(ctx, dep.Reference, nil); err != nil {
			t.Fatalf("settle %d: %v", i, err)
		}
	}

	hist, err := s.History(ctx, w.ID, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected limit 2, got %d rows", len(hist))
	}
	if hist[0].CreatedAt.Before(hist[1].CreatedAt) {
		t.Fatalf("history not newest-first")
	}
}

func TestWalletNumberFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		n := NewWalletNumber()
		if !ValidWalletNumber(n) {
			t.Fatalf("generated invalid wallet number %q", n)
		}
	}
	for _, bad := range []string{"", "123", "12345678901234", "123456789012a"} {
		if ValidWalletNumber(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestReferenceUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1_000; i++ {
		ref := NewReference(DepositRefPrefix)
		if seen[ref] {
			t.Fatalf("duplicate reference generated: %s", ref)
		}
		seen[ref] = true
	}
	if ref := NewReference(TransferRefPrefix); !strings.HasPrefix(ref, "txf_") {
		t.Fatalf("unexpected prefix: %s", ref)
	}
}
