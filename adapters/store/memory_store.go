package store

import (
	"context"
	"sync"
	"time"

	"github.com/whispernet/warden/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
	}
}

var _ ports.Store = (*MemoryStore)(nil)

// InvalidateToken marks a token as invalidated until expiry elapses.
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidatedTokens[tokenID] = time.Now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	expiryTime, exists := s.invalidatedTokens[tokenID]
	s.mu.RUnlock()

	if !exists {
		return false, nil
	}

	// Lazily drop entries whose invalidation window has passed.
	if time.Now().After(expiryTime) {
		s.mu.Lock()
		if stored, ok := s.invalidatedTokens[tokenID]; ok && !stored.After(expiryTime) {
			delete(s.invalidatedTokens, tokenID)
		}
		s.mu.Unlock()
		return false, nil
	}

	return true, nil
}
