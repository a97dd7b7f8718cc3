package tokenizer

import "github.com/golang-jwt/jwt/v5"

// identityClaims are the entitlement fields shared by both token kinds.
type identityClaims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	VIP         bool     `json:"isVIP,omitempty"`
	Premium     bool     `json:"isPremium,omitempty"`
}

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	identityClaims
	RefreshID string `json:"rid"` // ID of the refresh token this access token descends from
}

// RefreshClaims carry the same identity shape as access claims so a refresh
// can re-issue without a credential round-trip.
type RefreshClaims struct {
	jwt.RegisteredClaims
	identityClaims
}
