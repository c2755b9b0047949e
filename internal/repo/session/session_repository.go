package session

import (
	"context"

	"github.com/mkrupp/sampleapp/internal/domain"
)

// Repository defines the interface for server-side session persistence.
// Sessions are keyed by the digest of the client token, never the token itself.
type Repository interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID.
	// Returns ErrSessionNotFound if no such session exists.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// DeleteSession removes a session. Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, id string) error

	// DeleteExpiredSessions removes every session that expired at or before now
	// and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now int64) (int64, error)
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func() (Repository, error)
