package identity

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository used in tests and when no
// database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

func (r *MemoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.PassportNumber == user.PassportNumber {
			return ErrUserExists
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *MemoryRepository) FindByIdentifier(_ context.Context, identifier string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == identifier || user.PassportNumber == identifier {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *MemoryRepository) CountByKYCStatus(_ context.Context) (map[KYCStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := map[KYCStatus]int64{}
	for _, user := range r.users {
		counts[user.KYCStatus]++
	}
	return counts, nil
}

func (r *MemoryRepository) UpdateKYC(_ context.Context, id string, status KYCStatus, kycRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.KYCStatus = status
	user.KYCRef = kycRef
	r.users[id] = user
	return nil
}
