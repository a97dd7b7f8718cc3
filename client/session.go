package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/whispernet/warden/core"
)

const (
	// DefaultRefreshMargin is how long before access expiry the proactive
	// refresh fires.
	DefaultRefreshMargin = 5 * time.Minute

	// DefaultHTTPTimeout bounds every call to the token authority.
	DefaultHTTPTimeout = 10 * time.Second

	sessionKey = "session"
)

// Credentials identify an existing account.
type Credentials struct {
	Email    string
	Password string
}

// Config configures a Session.
type Config struct {
	// BaseURL of the token authority, e.g. "https://api.example.com".
	BaseURL string

	// Storage persists the session across restarts. Nil means in-memory.
	Storage Storage

	// RefreshMargin is how long before expiry to refresh. Zero means default.
	RefreshMargin time.Duration

	// HTTPTimeout bounds network calls. Zero means default.
	HTTPTimeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// OnSessionEnd is invoked after an automatic teardown (failed refresh).
	// It is never invoked for an explicit Logout.
	OnSessionEnd func()

	Logger *zap.Logger
}

// persistedSession is the storage wire format: the whole triple is written
// and cleared wholesale, never field by field.
type persistedSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         wireUser `json:"user"`
}

// Session owns the single current session on this device: it installs token
// pairs atomically, refreshes them ahead of expiry, and answers local
// identity queries. It must be constructed with New and released with Close.
type Session struct {
	api     *api
	storage Storage
	margin  time.Duration
	timeout time.Duration
	onEnd   func()
	log     *zap.Logger

	mu           sync.Mutex
	gen          uint64 // bumped on every install and clear
	identity     core.Identity
	accessToken  string
	refreshToken string
	accessExpiry time.Time
	timer        *time.Timer
	closed       bool
}

// New creates a session client. If the storage holds a persisted session it
// is resumed optimistically; the first server round-trip confirms validity.
func New(cfg Config) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	s := &Session{
		api:     &api{baseURL: cfg.BaseURL, http: httpClient},
		storage: cfg.Storage,
		margin:  cfg.RefreshMargin,
		timeout: cfg.HTTPTimeout,
		onEnd:   cfg.OnSessionEnd,
		log:     cfg.Logger,
	}

	s.resume()

	return s, nil
}

// resume loads a previously persisted session, if any.
func (s *Session) resume() {
	raw, err := s.storage.Get(sessionKey)
	if errors.Is(err, core.ErrNotFound) {
		return
	}
	if err != nil {
		s.log.Warn("failed to read persisted session", zap.Error(err))
		return
	}

	var stored persistedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.AccessToken == "" {
		_ = s.storage.Remove(sessionKey)
		return
	}

	expiry, err := decodeExpiry(stored.AccessToken)
	if err != nil {
		_ = s.storage.Remove(sessionKey)
		return
	}

	s.mu.Lock()
	s.installLocked(stored.User.identity(), stored.AccessToken, stored.RefreshToken, expiry)
	s.mu.Unlock()

	s.log.Debug("resumed persisted session", zap.String("subject", stored.User.ID))
}

// Login authenticates against the token authority and atomically installs
// the returned pair, discarding any previous session.
func (s *Session) Login(ctx context.Context, creds Credentials) (core.Identity, error) {
	payload, err := s.api.login(ctx, creds.Email, creds.Password)
	if err != nil {
		return core.Identity{}, err
	}
	return s.installPayload(payload)
}

// Register creates an account and installs the session exactly as Login does.
func (s *Session) Register(ctx context.Context, creds Credentials) (core.Identity, error) {
	payload, err := s.api.register(ctx, creds.Email, creds.Password)
	if err != nil {
		return core.Identity{}, err
	}
	return s.installPayload(payload)
}

// Logout clears the local session unconditionally, then notifies the server
// best-effort. A failed notification never blocks the local logout.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	refresh := s.refreshToken
	s.clearLocked()
	s.mu.Unlock()

	if refresh == "" {
		return
	}
	if err := s.api.logout(ctx, refresh); err != nil {
		s.log.Debug("server logout notification failed", zap.Error(err))
	}
}

// IsAuthenticated reports whether an access token is currently held. It does
// not re-verify signature or expiry; the server does that per request.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

// CurrentUser returns the cached user identity, or nil when logged out.
func (s *Session) CurrentUser() *core.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return nil
	}
	id := s.identity
	return &id
}

// HasRole evaluates locally against the cached user; UI gating only, never
// the security boundary. Returns false when logged out.
func (s *Session) HasRole(roles ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != "" && s.identity.HasRole(roles...)
}

// HasPermission evaluates locally against the cached user. Returns false
// when logged out.
func (s *Session) HasPermission(perms ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != "" && s.identity.HasPermission(perms...)
}

// AccessToken returns the currently held access token, empty when logged out.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// Do issues req with the bearer credential attached. On a 401 it refreshes
// once and retries once; a 403 is returned untouched so the caller can
// surface the upgrade-required message without any retry.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	token := s.AccessToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.api.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}
	resp.Body.Close()

	if err := s.refreshOnce(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+s.AccessToken())

	resp, err = s.api.http.Do(retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	return resp, nil
}

// Close stops the refresh timer. It does not touch persisted state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// installPayload installs a fresh pair from a login/registration response.
func (s *Session) installPayload(payload *authPayload) (core.Identity, error) {
	expiry, err := decodeExpiry(payload.AccessToken)
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: undecodable access token", core.ErrInvalidToken)
	}

	identity := payload.User.identity()

	s.mu.Lock()
	s.installLocked(identity, payload.AccessToken, payload.RefreshToken, expiry)
	s.persistLocked()
	s.mu.Unlock()

	return identity, nil
}

// installLocked replaces the whole session state and re-arms the refresh
// timer. Callers hold s.mu.
func (s *Session) installLocked(identity core.Identity, access, refresh string, expiry time.Time) {
	s.gen++
	s.identity = identity
	s.accessToken = access
	s.refreshToken = refresh
	s.accessExpiry = expiry
	s.armTimerLocked()
}

// clearLocked drops all session state. Callers hold s.mu.
func (s *Session) clearLocked() {
	s.gen++
	s.identity = core.Identity{}
	s.accessToken = ""
	s.refreshToken = ""
	s.accessExpiry = time.Time{}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if err := s.storage.Remove(sessionKey); err != nil {
		s.log.Warn("failed to clear persisted session", zap.Error(err))
	}
}

func (s *Session) persistLocked() {
	stored := persistedSession{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		User: wireUser{
			ID:          s.identity.Subject,
			Email:       s.identity.Email,
			Role:        s.identity.Role,
			Permissions: s.identity.Permissions,
			IsVIP:       s.identity.VIP,
			IsPremium:   s.identity.Premium,
		},
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		s.log.Warn("failed to marshal session", zap.Error(err))
		return
	}
	if err := s.storage.Set(sessionKey, string(raw)); err != nil {
		s.log.Warn("failed to persist session", zap.Error(err))
	}
}

func (s *Session) armTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.closed {
		return
	}

	delay := time.Until(s.accessExpiry) - s.margin
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.scheduledRefresh)
}

func (s *Session) scheduledRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.refreshOnce(ctx); err != nil {
		s.log.Info("scheduled refresh ended the session", zap.Error(err))
	}
}

// refreshOnce exchanges the refresh token for a new access token. Any
// failure, network included, tears the session down: an ambiguous session is
// worse than a forced re-login. If the session was logged out or replaced
// while the exchange was in flight, the result is discarded.
func (s *Session) refreshOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.accessToken == "" {
		s.mu.Unlock()
		return core.ErrInvalidToken
	}
	gen := s.gen
	refresh := s.refreshToken
	s.mu.Unlock()

	payload, err := s.api.refresh(ctx, refresh)

	s.mu.Lock()
	if s.closed || s.gen != gen {
		// Logout wins: never reinstall over a superseded session.
		s.mu.Unlock()
		return core.ErrInvalidToken
	}

	if err != nil {
		s.clearLocked()
		s.mu.Unlock()
		s.signalEnd()
		return err
	}

	expiry, decodeErr := decodeExpiry(payload.AccessToken)
	if decodeErr != nil {
		s.clearLocked()
		s.mu.Unlock()
		s.signalEnd()
		return fmt.Errorf("%w: undecodable access token", core.ErrInvalidToken)
	}

	// The authority does not rotate refresh tokens; keep the current one
	// unless it sent a replacement.
	newRefresh := payload.RefreshToken
	if newRefresh == "" {
		newRefresh = refresh
	}

	s.installLocked(payload.User.identity(), payload.AccessToken, newRefresh, expiry)
	s.persistLocked()
	s.mu.Unlock()

	return nil
}

func (s *Session) signalEnd() {
	if s.onEnd != nil {
		s.onEnd()
	}
}

// decodeExpiry reads the exp claim without verifying the signature. The
// client has no signing secret; verification is the server's job.
func decodeExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}
