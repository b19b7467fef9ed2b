package sessions

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown, expired or deleted sessions.
	ErrNotFound = errors.New("session not found")
	// ErrDuplicate is returned when a session id is already taken.
	ErrDuplicate = errors.New("session already exists")
)

// Session is a server-side login session created by the OAuth flow. Only the
// opaque ID travels to the browser; the user id stays on the server.
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"userId" json:"userId"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
