package core

import "time"

// Entitlement is a named subscription flag carried in token claims.
type Entitlement string

const (
	EntitlementVIP     Entitlement = "vip"
	EntitlementPremium Entitlement = "premium"
)

// Identity is the single claims shape encoded into session tokens.
// Entitlement changes never mutate an issued token; they take effect on the
// next issuance.
type Identity struct {
	Subject     string   // Unique user identifier
	Email       string   // Login email
	Role        string   // Coarse role, e.g. "user", "moderator", "admin"
	Permissions []string // Fine-grained permission names
	VIP         bool     // VIP subscription flag
	Premium     bool     // Premium subscription flag
}

// HasRole reports whether the identity holds any of the given roles.
// An empty identity matches nothing.
func (id Identity) HasRole(roles ...string) bool {
	if id.Role == "" {
		return false
	}
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// HasPermission reports whether the identity holds all of the given
// permissions.
func (id Identity) HasPermission(perms ...string) bool {
	if len(perms) == 0 {
		return true
	}
	held := make(map[string]struct{}, len(id.Permissions))
	for _, p := range id.Permissions {
		held[p] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := held[p]; !ok {
			return false
		}
	}
	return true
}

// Entitled reports whether the identity carries the given subscription flag.
func (id Identity) Entitled(flag Entitlement) bool {
	switch flag {
	case EntitlementVIP:
		return id.VIP
	case EntitlementPremium:
		return id.Premium
	default:
		return false
	}
}

// User is the credential-store record behind an identity. The password hash
// never leaves the store layer boundary into token claims.
type User struct {
	Identity
	PasswordHash []byte    // bcrypt hash of the login password
	CreatedAt    time.Time // When the account was registered
	UpdatedAt    time.Time // Last modification time
}

// Session represents one authenticated session: the identity plus the timing
// and linkage of the token pair minted for it.
type Session struct {
	ID            string    // Unique session identifier (access token JTI)
	Identity      Identity  // Claims encoded into both tokens
	IssuedAt      time.Time // When the session was created
	AccessExpiry  time.Time // When the access capability expires
	RefreshExpiry time.Time // When the refresh capability expires
	RefreshID     string    // Unique identifier of the refresh token (its JTI)
}
