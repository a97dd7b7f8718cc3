package userstore

import (
	"context"
	"strings"
	"sync"

	"github.com/whispernet/warden/core"
	"github.com/whispernet/warden/ports"
)

// MemoryStore is an in-memory implementation of the UserStore interface,
// suitable for tests and single-instance deployments.
type MemoryStore struct {
	byID    map[string]core.User
	byEmail map[string]string // email -> user id
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory user store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]core.User),
		byEmail: make(map[string]string),
	}
}

var _ ports.UserStore = (*MemoryStore)(nil)

// Create stores a new user, rejecting duplicate emails.
func (s *MemoryStore) Create(ctx context.Context, user *core.User) error {
	email := normalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return core.ErrConflict
	}

	s.byEmail[email] = user.Subject
	s.byID[user.Subject] = *user

	return nil
}

// GetByEmail returns the user registered under email
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, core.ErrNotFound
	}

	user := s.byID[id]
	return &user, nil
}

// GetByID returns the user with the given subject id
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Update overwrites an existing user record.
func (s *MemoryStore) Update(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.Subject]; !ok {
		return core.ErrNotFound
	}

	s.byID[user.Subject] = *user
	return nil
}
