package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kudi-wallet/kudi_wallet/internal/ledger"
)

const walletNumberAttempts = 5

// Service manages identity lifecycle. A wallet is provisioned in the same
// flow a user is first established and never lazily afterwards.
type Service struct {
	repo  Repository
	store ledger.Store
}

// NewService creates a new identity service.
func NewService(repo Repository, store ledger.Store) *Service {
	return &Service{repo: repo, store: store}
}

// EstablishFromGoogle returns the existing user for the profile or creates a
// new user plus their wallet. The wallet number is retried on the rare
// collision with an existing number.
func (s *Service) EstablishFromGoogle(ctx context.Context, profile Profile) (User, error) {
	if profile.GoogleID == "" || profile.Email == "" {
		return User{}, errors.New("google profile missing subject or email")
	}

	user, err := s.repo.FindByGoogleID(ctx, profile.GoogleID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	user = User{
		ID:        uuid.NewString(),
		GoogleID:  profile.GoogleID,
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   profile.Picture,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	var createErr error
	for attempt := 0; attempt < walletNumberAttempts; attempt++ {
		createErr = s.store.CreateWallet(ctx, ledger.Wallet{
			ID:           uuid.NewString(),
			OwnerID:      user.ID,
			WalletNumber: ledger.NewWalletNumber(),
			Balance:      0,
			CreatedAt:    user.CreatedAt,
		})
		if !errors.Is(createErr, ledger.ErrDuplicateReference) {
			break
		}
	}
	if createErr != nil {
		return User{}, createErr
	}

	return user, nil
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
