package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches a token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable is returned when the backing store times out or cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Session maps the digest of a client-held token to a user.
type Session struct {
	ID        string // Hex encoded SHA-256 digest of the session token
	UserID    int64  // Owner of the session
	CreatedAt int64  // Unix timestamp of login
	ExpiresAt int64  // Unix timestamp after which the session is void
}

// Expired reports whether the session is past its expiry at the given unix time.
func (s *Session) Expired(now int64) bool {
	return s.ExpiresAt <= now
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID   int64
	Username string
}
