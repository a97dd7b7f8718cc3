package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreInvalidation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	invalidated, err := s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, invalidated)

	require.NoError(t, s.InvalidateToken(ctx, "jti-1", time.Hour))

	invalidated, err = s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, invalidated)
}

func TestMemoryStoreExpiredEntriesAreForgotten(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InvalidateToken(ctx, "jti-1", time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	invalidated, err := s.IsTokenInvalidated(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, invalidated)
}
