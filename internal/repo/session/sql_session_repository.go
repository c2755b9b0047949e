package session

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/database"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
)

// SQLSessionRepository implements Repository on the sessions table.
type SQLSessionRepository struct {
	db  *database.DB
	log logging.Logger
}

var _ Repository = (*SQLSessionRepository)(nil)

// SQLSessionRepositoryFactory creates a factory function that returns a new SQLSessionRepository.
func SQLSessionRepositoryFactory(db *database.DB) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLSessionRepository(db), nil
	}
}

// NewSQLSessionRepository creates a new SQLSessionRepository on a migrated database.
func NewSQLSessionRepository(db *database.DB) *SQLSessionRepository {
	return &SQLSessionRepository{
		db: db,
		log: logging.GetLogger("repo.session.sql_session_repository").With(
			logging.Group("db", "driver", db.Driver),
		),
	}
}

// CreateSession implements Repository.CreateSession.
func (r *SQLSessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		r.db.Rebind("INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)"),
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return database.Wrap("insert session", err)
	}

	return nil
}

// GetSession implements Repository.GetSession.
func (r *SQLSessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var session domain.Session

	err := r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?"),
		id,
	).Scan(&session.ID, &session.UserID, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrSessionNotFound, err)
		}

		return nil, database.Wrap("query session", err)
	}

	return &session, nil
}

// DeleteSession implements Repository.DeleteSession.
func (r *SQLSessionRepository) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM sessions WHERE id = ?"), id); err != nil {
		return database.Wrap("delete session", err)
	}

	return nil
}

// DeleteExpiredSessions implements Repository.DeleteExpiredSessions.
func (r *SQLSessionRepository) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM sessions WHERE expires_at <= ?"), now)
	if err != nil {
		return 0, database.Wrap("delete expired sessions", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.Wrap("rows affected", err)
	}

	if n > 0 {
		r.log.DebugContext(ctx, "expired sessions purged", "count", n)
	}

	return n, nil
}
