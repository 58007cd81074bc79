package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kudi-wallet/kudi_wallet/internal/ledger"
	"github.com/kudi-wallet/kudi_wallet/internal/notification"
	"github.com/kudi-wallet/kudi_wallet/internal/paystack"
)

// MinDepositKobo is the smallest accepted deposit, in minor units.
const MinDepositKobo = 100

var (
	// ErrDepositBelowMinimum occurs when a deposit request is under the
	// provider minimum.
	ErrDepositBelowMinimum = fmt.Errorf("minimum deposit amount is %d", MinDepositKobo)

	// ErrInvalidWalletNumber occurs when a destination wallet number is
	// malformed.
	ErrInvalidWalletNumber = errors.New("wallet number must be exactly 13 digits")

	// ErrNotOwner occurs when a caller queries a transaction reference
	// booked against another owner's wallet.
	ErrNotOwner = errors.New("unauthorized access to transaction")
)

// Service orchestrates deposits, reconciliation, transfers and read queries
// over the ledger store and the payment provider.
type Service struct {
	store    ledger.Store
	provider paystack.Provider
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds a wallet service.
func NewService(store ledger.Store, provider paystack.Provider, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, provider: provider, notifier: notifier, logger: logger}
}

// DepositInput captures a deposit initiation request.
type DepositInput struct {
	OwnerID string
	Email   string
	Amount  int64 // minor units
}

// DepositIntent is the reference plus provider-hosted redirect for a deposit.
type DepositIntent struct {
	Reference        string
	AuthorizationURL string
}

// InitiateDeposit writes a pending transaction reserving a fresh reference,
// then asks the provider for a hosted payment page. No balance mutation
// happens here. If the provider rejects the request, the pending row stays in
// place for a later retry or webhook.
func (s *Service) InitiateDeposit(ctx context.Context, input DepositInput) (DepositIntent, error) {
	if input.Amount < MinDepositKobo {
		return DepositIntent{}, ErrDepositBelowMinimum
	}

	w, err := s.store.WalletByOwner(ctx, input.OwnerID)
	if err != nil {
		return DepositIntent{}, err
	}

	reference := ledger.NewReference(ledger.DepositRefPrefix)
	if err := s.store.CreatePending(ctx, ledger.Transaction{
		WalletID:  w.ID,
		Kind:      ledger.KindDeposit,
		Amount:    input.Amount,
		Status:    ledger.StatusPending,
		Reference: reference,
		Metadata: map[string]string{
			"email":        input.Email,
			"initiated_by": input.OwnerID,
		},
	}); err != nil {
		return DepositIntent{}, err
	}

	auth, err := s.provider.InitializeTransaction(ctx, input.Email, input.Amount, reference)
	if err != nil {
		s.logger.Warn("deposit initialization rejected by provider",
			slog.String("reference", reference), slog.Any("error", err))
		return DepositIntent{}, err
	}

	return DepositIntent{Reference: reference, AuthorizationURL: auth.AuthorizationURL}, nil
}

// HandleWebhook consumes a signature-verified provider event. Unknown
// references and already-settled transactions are silent no-ops: the
// provider delivers at least once and in no particular order.
func (s *Service) HandleWebhook(ctx context.Context, event paystack.Event) error {
	switch event.Event {
	case paystack.EventChargeSuccess:
		return s.settle(ctx, event.Data)
	case paystack.EventChargeFailed:
		return s.fail(ctx, event.Data)
	default:
		return nil
	}
}

func (s *Service) settle(ctx context.Context, data paystack.EventData) error {
	meta := map[string]string{
		"provider_status": data.Status,
		"provider_amount": strconv.FormatInt(data.Amount, 10),
		"processed_at":    time.Now().UTC().Format(time.RFC3339),
	}

	res, err := s.store.SettleDeposit(ctx, data.Reference, meta)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			s.logger.Info("webhook for unknown reference discarded", slog.String("reference", data.Reference))
			return nil
		}
		return err
	}
	if !res.Credited {
		s.logger.Info("webhook for settled reference discarded", slog.String("reference", data.Reference))
		return nil
	}

	// The booked amount is authoritative; a mismatching provider amount is
	// recorded for review but never credited.
	if data.Amount != 0 && data.Amount != res.Transaction.Amount {
		s.logger.Warn("provider-reported amount differs from booked amount",
			slog.String("reference", data.Reference),
			slog.Int64("booked", res.Transaction.Amount),
			slog.Int64("reported", data.Amount))
	}

	s.logger.Info("wallet credited",
		slog.String("reference", data.Reference),
		slog.Int64("amount", res.Transaction.Amount),
		slog.Int64("balance", res.Balance))

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindDepositCredited,
			Destination: res.Transaction.Metadata["email"],
			Body:        fmt.Sprintf("Your deposit %s has been credited", data.Reference),
		})
	}
	return nil
}

func (s *Service) fail(ctx context.Context, data paystack.EventData) error {
	meta := map[string]string{
		"provider_status": data.Status,
		"processed_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.store.FailDeposit(ctx, data.Reference, meta); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// TransferInput captures a peer-to-peer transfer request.
type TransferInput struct {
	OwnerID      string
	WalletNumber string
	Amount       int64
}

// TransferOutcome describes the committed result of a transfer.
type TransferOutcome struct {
	DebitReference  string
	CreditReference string
	SenderBalance   int64
	CompletedAt     time.Time
}

// Transfer moves funds from the owner's wallet to the destination wallet
// number as one atomic unit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferOutcome, error) {
	if input.Amount <= 0 {
		return TransferOutcome{}, ledger.ErrInvalidAmount
	}
	if !ledger.ValidWalletNumber(input.WalletNumber) {
		return TransferOutcome{}, ErrInvalidWalletNumber
	}

	sender, err := s.store.WalletByOwner(ctx, input.OwnerID)
	if err != nil {
		return TransferOutcome{}, err
	}

	res, err := s.store.Transfer(ctx, ledger.TransferInput{
		SenderWalletID:        sender.ID,
		RecipientWalletNumber: input.WalletNumber,
		Amount:                input.Amount,
		DebitReference:        ledger.NewReference(ledger.TransferRefPrefix),
		CreditReference:       ledger.NewReference(ledger.TransferRefPrefix),
		InitiatedBy:           input.OwnerID,
	})
	if err != nil {
		return TransferOutcome{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: input.WalletNumber,
			Body:        fmt.Sprintf("You received %d from wallet %s", input.Amount, sender.WalletNumber),
		})
	}

	return TransferOutcome{
		DebitReference:  res.DebitTransaction.Reference,
		CreditReference: res.CreditTransaction.Reference,
		SenderBalance:   res.SenderBalance,
		CompletedAt:     time.Now().UTC(),
	}, nil
}

// Balance returns the owner's wallet with its materialized balance.
func (s *Service) Balance(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	return s.store.WalletByOwner(ctx, ownerID)
}

// History returns the owner's transactions, newest first.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]ledger.Transaction, error) {
	w, err := s.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.store.History(ctx, w.ID, limit)
}

// DepositStatus reports the state of a deposit reference, scoped to the
// requesting owner. Holding a reference does not imply authorization.
func (s *Service) DepositStatus(ctx context.Context, ownerID, reference string) (ledger.Transaction, error) {
	tx, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Kind != ledger.KindDeposit {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	w, err := s.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.WalletID != w.ID {
		return ledger.Transaction{}, ErrNotOwner
	}
	return tx, nil
}
