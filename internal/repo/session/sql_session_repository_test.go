package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/database"
	"github.com/mkrupp/sampleapp/internal/infra/database/databasetest"
	"github.com/mkrupp/sampleapp/internal/repo/session"
)

func setup(t *testing.T, db *database.DB) (*session.SQLSessionRepository, int64) {
	t.Helper()

	var userID int64

	err := db.QueryRowContext(context.Background(),
		db.Rebind("INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id"),
		"alice", []byte("hash"), time.Now().Unix(),
	).Scan(&userID)
	require.NoError(t, err)

	return session.NewSQLSessionRepository(db), userID
}

//nolint:paralleltest
func TestSQLSessionRepository_Lifecycle(t *testing.T) {
	for name, open := range map[string]func(testing.TB) *database.DB{
		"sqlite":   databasetest.NewSQLite,
		"postgres": databasetest.NewPostgres,
	} {
		t.Run(name, func(t *testing.T) {
			repo, userID := setup(t, open(t))
			ctx := context.Background()
			now := time.Now().Unix()

			want := &domain.Session{ID: "digest-1", UserID: userID, CreatedAt: now, ExpiresAt: now + 60}
			require.NoError(t, repo.CreateSession(ctx, want))

			got, err := repo.GetSession(ctx, "digest-1")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, repo.DeleteSession(ctx, "digest-1"))

			_, err = repo.GetSession(ctx, "digest-1")
			require.ErrorIs(t, err, domain.ErrSessionNotFound)

			// idempotent
			require.NoError(t, repo.DeleteSession(ctx, "digest-1"))
		})
	}
}

func TestSQLSessionRepository_DeleteExpiredSessions(t *testing.T) {
	t.Parallel()

	repo, userID := setup(t, databasetest.NewSQLite(t))
	ctx := context.Background()
	now := time.Now().Unix()

	require.NoError(t, repo.CreateSession(ctx, &domain.Session{ID: "old", UserID: userID, CreatedAt: now - 100, ExpiresAt: now - 10}))
	require.NoError(t, repo.CreateSession(ctx, &domain.Session{ID: "edge", UserID: userID, CreatedAt: now - 100, ExpiresAt: now}))
	require.NoError(t, repo.CreateSession(ctx, &domain.Session{ID: "live", UserID: userID, CreatedAt: now, ExpiresAt: now + 100}))

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.GetSession(ctx, "live")
	require.NoError(t, err)

	_, err = repo.GetSession(ctx, "old")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSQLSessionRepository_UnknownUserRejected(t *testing.T) {
	t.Parallel()

	repo, _ := setup(t, databasetest.NewSQLite(t))

	err := repo.CreateSession(context.Background(), &domain.Session{ID: "x", UserID: 999, CreatedAt: 1, ExpiresAt: 2})
	require.Error(t, err)
}

func TestSQLSessionRepository_CascadeOnUserDelete(t *testing.T) {
	t.Parallel()

	db := databasetest.NewSQLite(t)
	repo, userID := setup(t, db)
	ctx := context.Background()

	require.NoError(t, repo.CreateSession(ctx, &domain.Session{ID: "s", UserID: userID, CreatedAt: 1, ExpiresAt: time.Now().Unix() + 60}))

	_, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
	require.NoError(t, err)

	_, err = repo.GetSession(ctx, "s")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSQLSessionRepository_StoreUnavailable(t *testing.T) {
	t.Parallel()

	repo, _ := setup(t, databasetest.NewSQLite(t))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := repo.GetSession(ctx, "x")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}
