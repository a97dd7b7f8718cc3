package tokenizer

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/whispernet/warden/core"
	"github.com/whispernet/warden/ports"
)

const AudienceAccess = "session:access"
const AudienceRefresh = "session:refresh"

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs signed
// with a process-wide secret.
type JWTTokenizer struct {
	secret []byte
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(secret []byte) ports.Tokenizer {
	return &JWTTokenizer{secret: secret}
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Identity.Subject,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.AccessExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		identityClaims: identityFromSession(session),
		RefreshID:      session.RefreshID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Identity.Subject,
			ID:        session.RefreshID, // Use RefreshID as the JWT ID for the refresh token
			ExpiresAt: jwt.NewNumericDate(session.RefreshExpiry),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceRefresh},
		},
		identityClaims: identityFromSession(session),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, j.keyFunc, jwt.WithAudience(AudienceAccess))
	if err != nil {
		return nil, mapParseError(err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	session := &core.Session{
		ID:           claims.ID,
		Identity:     identityFromClaims(claims.Subject, claims.identityClaims),
		IssuedAt:     claims.IssuedAt.Time,
		AccessExpiry: claims.ExpiresAt.Time,
		RefreshID:    claims.RefreshID,
	}

	return session, nil
}

// RefreshTokenToSession parses a refresh token and returns the associated session
func (j *JWTTokenizer) RefreshTokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &RefreshClaims{}, j.keyFunc, jwt.WithAudience(AudienceRefresh))
	if err != nil {
		return nil, mapParseError(err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	// For refresh tokens the access expiry is zeroed; it is not used when
	// processing refresh requests.
	session := &core.Session{
		Identity:      identityFromClaims(claims.Subject, claims.identityClaims),
		IssuedAt:      claims.IssuedAt.Time,
		RefreshExpiry: claims.ExpiresAt.Time,
		RefreshID:     claims.ID, // The JWT ID is the refresh token ID
	}

	return session, nil
}

// keyFunc validates the signing method before handing back the shared secret.
func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return j.secret, nil
}

// mapParseError collapses library parse failures into the domain taxonomy.
// Expiry stays distinguishable internally; everything else is ErrInvalidToken
// so callers cannot tell forged from malformed.
func mapParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %w", core.ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %w", core.ErrInvalidToken, err)
}

func identityFromSession(session *core.Session) identityClaims {
	return identityClaims{
		Email:       session.Identity.Email,
		Role:        session.Identity.Role,
		Permissions: session.Identity.Permissions,
		VIP:         session.Identity.VIP,
		Premium:     session.Identity.Premium,
	}
}

func identityFromClaims(subject string, c identityClaims) core.Identity {
	return core.Identity{
		Subject:     subject,
		Email:       c.Email,
		Role:        c.Role,
		Permissions: c.Permissions,
		VIP:         c.VIP,
		Premium:     c.Premium,
	}
}
