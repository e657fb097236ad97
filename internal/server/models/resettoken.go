package models

import "time"

// PasswordResetToken is a single-use credential delivered by email.
type PasswordResetToken struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsActive  bool
}

func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
