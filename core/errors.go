package core

import "errors"

var (
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalidated   = errors.New("token has been invalidated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrConflict           = errors.New("email already registered")
	ErrValidation         = errors.New("invalid registration data")
	ErrForbidden          = errors.New("insufficient entitlement")
	ErrNotFound           = errors.New("not found")
	ErrNetwork            = errors.New("network error")
)
