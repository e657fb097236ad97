// Package models holds the plain records the server passes between
// repositories and services. Storage rows are scanned into these types at
// the repository boundary; nothing here knows about SQL.
package models

import "time"

// User is a credential-store record. An empty PasswordHash means the account
// was created through an external identity provider and has no password;
// an empty TwoFactorSecret means no TOTP enrollment was ever started.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	IsActive         bool
	TwoFactorEnabled bool
	TwoFactorSecret  string
	CreatedAt        time.Time
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) HasTwoFactorSecret() bool {
	return u.TwoFactorSecret != ""
}
