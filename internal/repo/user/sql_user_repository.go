package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/database"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
)

// SQLUserRepository implements Repository on top of the shared database handle.
// It works with every driver supported by the database package.
type SQLUserRepository struct {
	db  *database.DB
	log logging.Logger
}

var _ Repository = (*SQLUserRepository)(nil)

// SQLUserRepositoryFactory creates a factory function that returns a new SQLUserRepository.
func SQLUserRepositoryFactory(db *database.DB) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLUserRepository(db), nil
	}
}

// NewSQLUserRepository creates a new SQLUserRepository. The schema is expected
// to be migrated already, see database.Open.
func NewSQLUserRepository(db *database.DB) *SQLUserRepository {
	return &SQLUserRepository{
		db: db,
		log: logging.GetLogger("repo.user.sql_user_repository").With(
			logging.Group("db", "driver", db.Driver),
		),
	}
}

// CreateUser implements Repository.CreateUser. Uniqueness is enforced by the
// UNIQUE constraint on users.username, so concurrent inserts of one name
// cannot both succeed.
func (r *SQLUserRepository) CreateUser(ctx context.Context, username string, passwordHash []byte) (int64, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var id int64

	err := r.db.QueryRowContext(ctx,
		r.db.Rebind("INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id"),
		username,
		passwordHash,
		time.Now().Unix(),
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		}

		return 0, database.Wrap("insert user", err)
	}

	return id, nil
}

// GetUserByUsername implements Repository.GetUserByUsername.
func (r *SQLUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username)
}

// GetUserByID implements Repository.GetUserByID.
func (r *SQLUserRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUser(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id)
}

func (r *SQLUserRepository) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	var user domain.User

	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), arg).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return nil, database.Wrap("query user", err)
	}

	return &user, nil
}

// ListUsers implements Repository.ListUsers. Password hashes are never selected.
func (r *SQLUserRepository) ListUsers(ctx context.Context) (_ []domain.UserSummary, err error) {
	ctx, cancel := r.db.WithTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, "SELECT id, username FROM users ORDER BY id")
	if err != nil {
		return nil, database.Wrap("query users", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = database.Wrap("close rows", closeErr)
		}
	}()

	users := make([]domain.UserSummary, 0)

	for rows.Next() {
		var user domain.UserSummary
		if err := rows.Scan(&user.ID, &user.Username); err != nil {
			return nil, database.Wrap("scan user", err)
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, database.Wrap("iterate users", err)
	}

	r.log.DebugContext(ctx, "users listed", "count", len(users))

	return users, nil
}
