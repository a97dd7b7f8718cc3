package ports

import "github.com/whispernet/warden/core"

// Tokenizer converts between domain sessions and signed token strings.
// Implementations own the signing algorithm; callers never touch raw claims.
type Tokenizer interface {
	// Session token operations
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}
