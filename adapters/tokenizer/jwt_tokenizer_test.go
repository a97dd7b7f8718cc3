package tokenizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispernet/warden/core"
)

var testSecret = []byte("unit-test-secret")

func testSession(now time.Time) *core.Session {
	return &core.Session{
		ID: "session-1",
		Identity: core.Identity{
			Subject:     "user-1",
			Email:       "ada@example.com",
			Role:        "moderator",
			Permissions: []string{"reports:read", "confessions:hide"},
			VIP:         true,
		},
		IssuedAt:      now,
		AccessExpiry:  now.Add(24 * time.Hour),
		RefreshExpiry: now.Add(7 * 24 * time.Hour),
		RefreshID:     "refresh-1",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)
	session := testSession(time.Now())

	token, err := tk.SessionToAccessToken(session)
	require.NoError(t, err)

	parsed, err := tk.AccessTokenToSession(token)
	require.NoError(t, err)

	assert.Equal(t, session.ID, parsed.ID)
	assert.Equal(t, session.Identity, parsed.Identity)
	assert.Equal(t, session.RefreshID, parsed.RefreshID)
	assert.WithinDuration(t, session.AccessExpiry, parsed.AccessExpiry, time.Second)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)
	session := testSession(time.Now())

	token, err := tk.SessionToRefreshToken(session)
	require.NoError(t, err)

	parsed, err := tk.RefreshTokenToSession(token)
	require.NoError(t, err)

	assert.Equal(t, session.Identity, parsed.Identity)
	assert.Equal(t, session.RefreshID, parsed.RefreshID)
	assert.WithinDuration(t, session.RefreshExpiry, parsed.RefreshExpiry, time.Second)
}

func TestExpiredAccessToken(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)
	session := testSession(time.Now().Add(-48 * time.Hour))

	token, err := tk.SessionToAccessToken(session)
	require.NoError(t, err)

	_, err = tk.AccessTokenToSession(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestTamperedTokenIsInvalid(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)
	session := testSession(time.Now())

	token, err := tk.SessionToAccessToken(session)
	require.NoError(t, err)

	firstDot := strings.Index(token, ".")
	lastDot := strings.LastIndex(token, ".")
	require.Greater(t, lastDot, firstDot)

	// Flip a bit in the header, the claims and the signature. Each mutation
	// must be rejected as invalid, never as expired.
	for _, i := range []int{1, firstDot + 2, lastDot + 2} {
		mutated := []byte(token)
		mutated[i] ^= 0x04

		_, err := tk.AccessTokenToSession(string(mutated))
		assert.ErrorIs(t, err, core.ErrInvalidToken, "mutation at byte %d", i)
		assert.NotErrorIs(t, err, core.ErrTokenExpired)
	}
}

func TestWrongSecretIsInvalid(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)
	other := NewJWTTokenizer([]byte("some-other-secret"))
	session := testSession(time.Now())

	token, err := tk.SessionToAccessToken(session)
	require.NoError(t, err)

	_, err = other.AccessTokenToSession(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAudienceSeparation(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)
	session := testSession(time.Now())

	refreshToken, err := tk.SessionToRefreshToken(session)
	require.NoError(t, err)
	accessToken, err := tk.SessionToAccessToken(session)
	require.NoError(t, err)

	// A refresh token must not pass as an access token, nor vice versa.
	_, err = tk.AccessTokenToSession(refreshToken)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tk.RefreshTokenToSession(accessToken)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestGarbageTokens(t *testing.T) {
	tk := NewJWTTokenizer(testSecret)

	for _, tokenStr := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := tk.AccessTokenToSession(tokenStr)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	}
}
