package domain

import (
	"time"
)

// Session is an opaque bearer token issued at login.
type Session struct {
	// ID is the unique identifier for the session (auto-generated).
	ID int64 `json:"-"`

	// Token is the random session token presented as a bearer credential.
	Token string `json:"token"`

	// UserID is the authenticated user the session belongs to.
	UserID int64 `json:"user_id"`

	// ExpiresAt is when the session stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`

	// CreatedAt is the timestamp when the session was issued.
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates a session with the given lifetime.
func NewSession(userID int64, token string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
