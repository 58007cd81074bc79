package apikeys

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu            sync.RWMutex
	byID          map[string]Key
	byFingerprint map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:          make(map[string]Key),
		byFingerprint: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byFingerprint[key.Fingerprint]; exists {
		return errors.New("fingerprint exists")
	}
	r.byID[key.ID] = key
	r.byFingerprint[key.Fingerprint] = key.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, userID, id string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byID[id]
	if !ok || k.UserID != userID {
		return Key{}, ErrKeyNotFound
	}
	return k, nil
}

func (r *memoryRepository) FindByFingerprint(_ context.Context, fingerprint string) (Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byFingerprint[fingerprint]
	if !ok {
		return Key{}, ErrKeyNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Key
	for _, k := range r.byID {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) Revoke(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok || k.UserID != userID {
		return ErrKeyNotFound
	}
	k.Revoked = true
	r.byID[id] = k
	return nil
}
