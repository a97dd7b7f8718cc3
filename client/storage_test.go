package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispernet/warden/core"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	_, err := s.Get("session")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Set("session", "payload"))
	v, err := s.Get("session")
	require.NoError(t, err)
	assert.Equal(t, "payload", v)

	require.NoError(t, s.Remove("session"))
	_, err = s.Get("session")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestFileStorage(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get("session")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.Set("session", `{"access_token":"x"}`))
	v, err := s.Get("session")
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"x"}`, v)

	require.NoError(t, s.Set("session", "overwritten"))
	v, err = s.Get("session")
	require.NoError(t, err)
	assert.Equal(t, "overwritten", v)

	require.NoError(t, s.Remove("session"))
	_, err = s.Get("session")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Removing a missing key is not an error.
	require.NoError(t, s.Remove("session"))
}
