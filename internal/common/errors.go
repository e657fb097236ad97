// Package common defines shared constants, helpers and sentinel errors used
// across the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Account errors.
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInactiveUser       = errors.New("user not found or inactive")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")

	// Token lifecycle errors. Refresh and reset tokens share one kind.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token expired")
	ErrActiveResetToken      = errors.New("user already has an active reset token")

	// Two-factor errors.
	ErrTwoFactorNotEnabled = errors.New("2FA not enabled for this user")
	ErrInvalidCode         = errors.New("invalid 2FA code")
)
