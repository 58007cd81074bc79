package identity

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]User
	byGoogle map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:     make(map[string]User),
		byGoogle: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byGoogle[user.GoogleID]; exists {
		return errors.New("user exists")
	}
	r.byID[user.ID] = user
	r.byGoogle[user.GoogleID] = user.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByGoogleID(_ context.Context, googleID string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byGoogle[googleID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return r.byID[id], nil
}
