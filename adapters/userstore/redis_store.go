package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whispernet/warden/core"
	"github.com/whispernet/warden/ports"
)

// RedisStore is a Redis implementation of the UserStore interface. Users are
// stored as JSON under an id key with a separate email index.
type RedisStore struct {
	client      *redis.Client
	userPrefix  string
	emailPrefix string
}

// NewRedisStore creates a new Redis user store
func NewRedisStore(client *redis.Client) ports.UserStore {
	return &RedisStore{
		client:      client,
		userPrefix:  "warden:user:",
		emailPrefix: "warden:email:",
	}
}

type userRecord struct {
	Subject      string    `json:"subject"`
	Email        string    `json:"email"`
	Role         string    `json:"role,omitempty"`
	Permissions  []string  `json:"permissions,omitempty"`
	VIP          bool      `json:"vip,omitempty"`
	Premium      bool      `json:"premium,omitempty"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Create stores a new user. The email index is claimed first with SETNX so a
// concurrent registration for the same address loses with ErrConflict.
func (s *RedisStore) Create(ctx context.Context, user *core.User) error {
	email := strings.ToLower(strings.TrimSpace(user.Email))

	claimed, err := s.client.SetNX(ctx, s.emailPrefix+email, user.Subject, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email index: %w", err)
	}
	if !claimed {
		return core.ErrConflict
	}

	payload, err := json.Marshal(recordFromUser(user))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.client.Set(ctx, s.userPrefix+user.Subject, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	return nil
}

// GetByEmail returns the user registered under email
func (s *RedisStore) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	id, err := s.client.Get(ctx, s.emailPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve email index: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID returns the user with the given subject id
func (s *RedisStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	payload, err := s.client.Get(ctx, s.userPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return rec.toUser(), nil
}

func recordFromUser(user *core.User) userRecord {
	return userRecord{
		Subject:      user.Subject,
		Email:        user.Email,
		Role:         user.Role,
		Permissions:  user.Permissions,
		VIP:          user.VIP,
		Premium:      user.Premium,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func (r userRecord) toUser() *core.User {
	return &core.User{
		Identity: core.Identity{
			Subject:     r.Subject,
			Email:       r.Email,
			Role:        r.Role,
			Permissions: r.Permissions,
			VIP:         r.VIP,
			Premium:     r.Premium,
		},
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Update overwrites an existing user record.
func (s *RedisStore) Update(ctx context.Context, user *core.User) error {
	exists, err := s.client.Exists(ctx, s.userPrefix+user.Subject).Result()
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if exists == 0 {
		return core.ErrNotFound
	}

	payload, err := json.Marshal(recordFromUser(user))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.client.Set(ctx, s.userPrefix+user.Subject, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	return nil
}
