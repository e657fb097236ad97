package models

import "time"

// RefreshToken is one link of a rotation chain. SessionCreatedAt is the
// instant of the original credential login and is copied unchanged to every
// successor, so the chain's total age can be bounded.
type RefreshToken struct {
	ID               string
	UserID           string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	SessionCreatedAt time.Time
	IsActive         bool
}

// Expired reports whether the token's own expiry has passed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SessionAge is the time elapsed since the chain's original login.
func (t *RefreshToken) SessionAge(now time.Time) time.Duration {
	return now.Sub(t.SessionCreatedAt)
}
