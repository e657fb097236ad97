// Package services contains the server-side business logic: account
// registration and lookup (UserService) and the session/credential lifecycle
// (SessionService): password and step-up login, refresh rotation, logout,
// TOTP enrollment, Google login and password reset.
package services

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// PasswordHasher is a one-way salted password hash. Verify with an empty
// digest must still cost one comparison and report false.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// TOTPEngine generates shared secrets and verifies time-based codes.
type TOTPEngine interface {
	GenerateSecret(account string) (string, error)
	EnrollmentURL(secret, account, issuer string) (string, error)
	Verify(secret, code string, skew uint) bool
}

// AccessTokenIssuer signs short-lived bearer tokens carrying {sub, email}.
type AccessTokenIssuer interface {
	Sign(subject, email string) (string, error)
}

// Notifier delivers password-reset links. Delivery is fire-and-forget from
// the service's point of view: errors are logged, never retried here.
type Notifier interface {
	SendPasswordResetEmail(ctx context.Context, user *models.User, tokenID string) error
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by every operation that can establish a session.
// When TwoFactorRequired is set, Tokens is nil and the caller must complete
// the step-up login with a TOTP code for User.ID.
type LoginResult struct {
	User              *models.User
	Tokens            *TokenPair
	TwoFactorRequired bool
}

// TwoFactorSecret is the result of a 2FA enrollment request.
type TwoFactorSecret struct {
	Secret        string
	EnrollmentURL string
}
