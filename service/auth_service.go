package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/whispernet/warden/core"
	"github.com/whispernet/warden/ports"
)

const (
	// DefaultAccessTTL is the default access token lifetime.
	DefaultAccessTTL = 24 * time.Hour

	// DefaultRefreshTTL is the default refresh token lifetime.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config holds token lifetimes for the auth service. Zero values fall back to
// the defaults above.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenPair is the result of a successful login, registration or refresh.
// RefreshToken is empty when only the access token was re-issued.
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Registration is the data needed to create a new account.
type Registration struct {
	Email    string
	Password string
	Role     string
}

// AuthService handles authentication business logic: it is the sole source of
// truth for who a caller is and which entitlements they hold.
type AuthService struct {
	users     ports.UserStore
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	log       *zap.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users ports.UserStore,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	log *zap.Logger,
	cfg Config,
) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		tokenizer:  tokenizer,
		store:      store,
		eventPub:   eventPub,
		log:        log,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// Register creates a new account and logs it in, returning the user together
// with a fresh token pair. A taken email yields core.ErrConflict.
func (s *AuthService) Register(ctx context.Context, reg Registration) (*core.User, TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if email == "" || reg.Password == "" {
		return nil, TokenPair{}, core.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to hash password: %w", err)
	}

	role := reg.Role
	if role == "" {
		role = "user"
	}

	now := time.Now()
	user := &core.User{
		Identity: core.Identity{
			Subject: uuid.New().String(),
			Email:   email,
			Role:    role,
		},
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.log.Info("user registered", zap.String("subject", user.Subject))
	return user, pair, nil
}

// Login authenticates a user by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.User, TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, TokenPair{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, TokenPair{}, core.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.log.Info("user logged in", zap.String("subject", user.Subject))
	return user, pair, nil
}

// Refresh issues a new access token from a valid refresh token. The refresh
// token itself is not rotated: it stays valid until its own expiry or until
// logout invalidates it. The identity is re-resolved against the user store so
// entitlement changes take effect on the re-issued token.
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (*core.User, TokenPair, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return nil, TokenPair{}, err
	}

	if time.Now().After(session.RefreshExpiry) {
		return nil, TokenPair{}, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, TokenPair{}, core.ErrTokenInvalidated
	}

	user, err := s.users.GetByID(ctx, session.Identity.Subject)
	if errors.Is(err, core.ErrNotFound) {
		return nil, TokenPair{}, core.ErrInvalidToken
	}
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now()
	newSession := &core.Session{
		ID:           uuid.New().String(),
		Identity:     user.Identity,
		IssuedAt:     now,
		AccessExpiry: now.Add(s.accessTTL),
		RefreshID:    session.RefreshID,
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(newSession)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("failed to create new access token: %w", err)
	}

	pair := TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: newSession.AccessExpiry,
	}

	return user, pair, nil
}

// Logout invalidates a refresh token. Expired tokens still log out cleanly.
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil
		}
		return err
	}

	// Even an expired token gets a short invalidation record so slightly
	// skewed clocks cannot resurrect it.
	remaining := time.Until(session.RefreshExpiry)
	if remaining <= 0 {
		remaining = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogout(ctx, session.Identity.Subject, session.RefreshID); err != nil {
			// The token is already invalidated, which is the part that matters.
			s.log.Warn("failed to publish logout event", zap.Error(err))
		}
	}

	return nil
}

// VerifyAccessToken validates an access token and returns the session it
// encodes. Beyond the revocation-list read it has no side effects.
func (s *AuthService) VerifyAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Access tokens die with the refresh token they descend from.
	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

// issuePair mints a fresh access+refresh token pair for the user and
// publishes a login event.
func (s *AuthService) issuePair(ctx context.Context, user *core.User) (TokenPair, error) {
	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Identity:      user.Identity,
		IssuedAt:      now,
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshExpiry: now.Add(s.refreshTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to create refresh token: %w", err)
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogin(ctx, user.Subject, session.ID); err != nil {
			s.log.Warn("failed to publish login event", zap.Error(err))
		}
	}

	return TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: session.AccessExpiry,
	}, nil
}
