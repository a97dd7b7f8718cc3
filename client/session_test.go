package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispernet/warden/core"
)

func makeToken(t *testing.T, ttl time.Duration) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return token
}

var testUser = wireUser{
	ID:          "user-1",
	Email:       "ada@example.com",
	Role:        "user",
	Permissions: []string{"confessions:write"},
	IsVIP:       false,
}

func writeAuthPayload(w http.ResponseWriter, access, refresh string) {
	_ = json.NewEncoder(w).Encode(authPayload{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         testUser,
	})
}

// authority is a scripted token authority for client tests.
type authority struct {
	mux          *http.ServeMux
	server       *httptest.Server
	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
}

func newAuthority(t *testing.T) *authority {
	t.Helper()

	a := &authority{mux: http.NewServeMux()}
	a.server = httptest.NewServer(a.mux)
	t.Cleanup(a.server.Close)
	return a
}

func (a *authority) loginReturns(t *testing.T, access, refresh string) {
	a.mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeAuthPayload(w, access, refresh)
	})
}

func (a *authority) refreshReturns(t *testing.T, access string, status int) {
	a.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		writeAuthPayload(w, access, "")
	})
}

func (a *authority) logoutReturns(status int) {
	a.mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		a.logoutCalls.Add(1)
		w.WriteHeader(status)
	})
}

func newSession(t *testing.T, a *authority, cfg Config) *Session {
	t.Helper()

	cfg.BaseURL = a.server.URL
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func login(t *testing.T, s *Session) core.Identity {
	t.Helper()

	id, err := s.Login(context.Background(), Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	return id
}

func TestLoginInstallsSession(t *testing.T) {
	a := newAuthority(t)
	access := makeToken(t, time.Hour)
	a.loginReturns(t, access, "refresh-token")

	storage := NewMemoryStorage()
	s := newSession(t, a, Config{Storage: storage})

	assert.False(t, s.IsAuthenticated())

	id := login(t, s)
	assert.Equal(t, "user-1", id.Subject)

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, access, s.AccessToken())
	require.NotNil(t, s.CurrentUser())
	assert.Equal(t, "ada@example.com", s.CurrentUser().Email)
	assert.True(t, s.HasRole("user"))
	assert.True(t, s.HasPermission("confessions:write"))
	assert.False(t, s.HasRole("admin"))

	// The whole triple is persisted, and a refresh timer is armed.
	_, err := storage.Get(sessionKey)
	require.NoError(t, err)
	s.mu.Lock()
	assert.NotNil(t, s.timer)
	s.mu.Unlock()
}

func TestScheduledRefreshBeforeExpiry(t *testing.T) {
	a := newAuthority(t)
	oldAccess := makeToken(t, 150*time.Millisecond)
	newAccess := makeToken(t, time.Hour)
	a.loginReturns(t, oldAccess, "refresh-token")
	a.refreshReturns(t, newAccess, http.StatusOK)

	s := newSession(t, a, Config{RefreshMargin: 100 * time.Millisecond})
	login(t, s)

	require.Eventually(t, func() bool {
		return s.AccessToken() == newAccess
	}, 2*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 1, a.refreshCalls.Load())
	assert.True(t, s.IsAuthenticated())
}

func TestRefreshFailureEndsSession(t *testing.T) {
	a := newAuthority(t)
	a.loginReturns(t, makeToken(t, 50*time.Millisecond), "refresh-token")
	a.refreshReturns(t, "", http.StatusUnauthorized)

	ended := make(chan struct{}, 1)
	storage := NewMemoryStorage()
	s := newSession(t, a, Config{
		Storage:       storage,
		RefreshMargin: time.Minute, // refresh fires immediately
		OnSessionEnd:  func() { ended <- struct{}{} },
	})
	login(t, s)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("session end was never signaled")
	}

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.CurrentUser())
	assert.False(t, s.HasRole("user"))

	_, err := storage.Get(sessionKey)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDoRefreshesAndRetriesOn401(t *testing.T) {
	a := newAuthority(t)
	oldAccess := makeToken(t, time.Hour)
	newAccess := makeToken(t, time.Hour)
	a.loginReturns(t, oldAccess, "refresh-token")
	a.refreshReturns(t, newAccess, http.StatusOK)

	var resourceCalls atomic.Int64
	a.mux.HandleFunc("/api/confessions", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+newAccess {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	s := newSession(t, a, Config{})
	login(t, s)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, a.server.URL+"/api/confessions", nil)
	require.NoError(t, err)

	resp, err := s.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, resourceCalls.Load())
	assert.EqualValues(t, 1, a.refreshCalls.Load())
	assert.Equal(t, newAccess, s.AccessToken())
}

func TestDoDoesNotRetryOn403(t *testing.T) {
	a := newAuthority(t)
	a.loginReturns(t, makeToken(t, time.Hour), "refresh-token")
	a.refreshReturns(t, "", http.StatusOK)

	var resourceCalls atomic.Int64
	a.mux.HandleFunc("/api/vip/backstage", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	s := newSession(t, a, Config{})
	login(t, s)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, a.server.URL+"/api/vip/backstage", nil)
	require.NoError(t, err)

	resp, err := s.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Forbidden means insufficient entitlement: no refresh, no retry, the
	// caller surfaces the upgrade-required message.
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.EqualValues(t, 1, resourceCalls.Load())
	assert.EqualValues(t, 0, a.refreshCalls.Load())
	assert.True(t, s.IsAuthenticated())
}

func TestLogoutWinsOverInFlightRefresh(t *testing.T) {
	a := newAuthority(t)
	a.loginReturns(t, makeToken(t, 50*time.Millisecond), "refresh-token")
	a.logoutReturns(http.StatusOK)

	refreshStarted := make(chan struct{})
	release := make(chan struct{})
	a.mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		close(refreshStarted)
		<-release
		writeAuthPayload(w, makeToken(t, time.Hour), "")
	})

	s := newSession(t, a, Config{RefreshMargin: time.Minute}) // refresh fires immediately
	login(t, s)

	select {
	case <-refreshStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled refresh never started")
	}

	s.Logout(context.Background())
	assert.False(t, s.IsAuthenticated())

	// Let the in-flight refresh complete; its result must be discarded.
	close(release)
	time.Sleep(100 * time.Millisecond)

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.CurrentUser())
	assert.Empty(t, s.AccessToken())
}

func TestLogoutClearsLocallyEvenIfServerFails(t *testing.T) {
	a := newAuthority(t)
	a.loginReturns(t, makeToken(t, time.Hour), "refresh-token")
	a.logoutReturns(http.StatusInternalServerError)

	storage := NewMemoryStorage()
	s := newSession(t, a, Config{Storage: storage})
	login(t, s)

	s.Logout(context.Background())

	assert.EqualValues(t, 1, a.logoutCalls.Load())
	assert.False(t, s.IsAuthenticated())
	_, err := storage.Get(sessionKey)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestQueriesAreSafeWhenLoggedOut(t *testing.T) {
	a := newAuthority(t)
	s := newSession(t, a, Config{})

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.CurrentUser())
	assert.False(t, s.HasRole("user"))
	assert.False(t, s.HasPermission("confessions:write"))
	assert.Empty(t, s.AccessToken())
}

func TestBootResumeFromPersistedSession(t *testing.T) {
	a := newAuthority(t)
	a.loginReturns(t, makeToken(t, time.Hour), "refresh-token")

	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	first := newSession(t, a, Config{Storage: storage})
	login(t, first)
	first.Close()

	// A new client over the same storage resumes the session optimistically.
	second := newSession(t, a, Config{Storage: storage})
	assert.True(t, second.IsAuthenticated())
	require.NotNil(t, second.CurrentUser())
	assert.Equal(t, "ada@example.com", second.CurrentUser().Email)
	assert.Equal(t, first.AccessToken(), second.AccessToken())
}

func TestBootDropsCorruptPersistedState(t *testing.T) {
	a := newAuthority(t)

	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(sessionKey, "{not json"))

	s := newSession(t, a, Config{Storage: storage})
	assert.False(t, s.IsAuthenticated())

	_, err := storage.Get(sessionKey)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLoginFailureMapsTaxonomy(t *testing.T) {
	a := newAuthority(t)
	a.mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	a.mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	s := newSession(t, a, Config{})

	_, err := s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	assert.False(t, s.IsAuthenticated())

	_, err = s.Register(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestNetworkFailureIsNetworkError(t *testing.T) {
	a := newAuthority(t)
	url := a.server.URL
	a.server.Close()

	s, err := New(Config{BaseURL: url})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, core.ErrNetwork)
}
