package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whispernet/warden/core"
)

// Storage persists the current session across process restarts. The contract
// is last-write-wins; no transactional guarantees. Get returns
// core.ErrNotFound for missing keys.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryStorage keeps values in process memory. Sessions do not survive a
// restart; useful for tests and throwaway tooling.
type MemoryStorage struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return v, nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// FileStorage persists each key as a file under dir, mode 0600.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

// NewFileStorage creates the directory if needed and returns a file-backed
// storage.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}
	return string(data), nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(key), []byte(value), 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (s *FileStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// RedisStorage persists session state in redis under a key prefix, for
// deployments that already run one.
type RedisStorage struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisStorage creates a new redis-backed storage
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client:  client,
		prefix:  "warden:client:",
		timeout: 5 * time.Second,
	}
}

func (s *RedisStorage) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}
	return v, nil
}

func (s *RedisStorage) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}
