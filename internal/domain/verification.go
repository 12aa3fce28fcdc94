package domain

import "time"

// VerificationToken proves control of the registration email address.
// Tokens are never consumed; validity ends at ExpiresAt.
type VerificationToken struct {
	TokenID   string    `json:"id"`
	Token     string    `json:"token"`
	AccountID string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiredAt reports whether the token is no longer valid at t.
func (v *VerificationToken) ExpiredAt(t time.Time) bool {
	return !t.Before(v.ExpiresAt)
}
