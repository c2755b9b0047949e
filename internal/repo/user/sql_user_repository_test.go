package user_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/database"
	"github.com/mkrupp/sampleapp/internal/infra/database/databasetest"
	"github.com/mkrupp/sampleapp/internal/repo/user"
)

func backends(t *testing.T) map[string]func(testing.TB) *database.DB {
	t.Helper()

	return map[string]func(testing.TB) *database.DB{
		"sqlite":   databasetest.NewSQLite,
		"postgres": databasetest.NewPostgres,
	}
}

// Backends share one postgres database, so these run sequentially.
//
//nolint:paralleltest
func TestSQLUserRepository_CreateAndGet(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := user.NewSQLUserRepository(open(t))
			ctx := context.Background()

			id, err := repo.CreateUser(ctx, "alice", []byte("hash-a"))
			require.NoError(t, err)
			assert.Positive(t, id)

			byName, err := repo.GetUserByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, id, byName.ID)
			assert.Equal(t, "alice", byName.Username)
			assert.Equal(t, []byte("hash-a"), byName.PasswordHash)
			assert.InDelta(t, time.Now().Unix(), byName.CreatedAt, 5)

			byID, err := repo.GetUserByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, byName, byID)
		})
	}
}

//nolint:paralleltest
func TestSQLUserRepository_DuplicateUsername(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := user.NewSQLUserRepository(open(t))
			ctx := context.Background()

			_, err := repo.CreateUser(ctx, "alice", []byte("first"))
			require.NoError(t, err)

			_, err = repo.CreateUser(ctx, "alice", []byte("second"))
			require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
			assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)

			users, err := repo.ListUsers(ctx)
			require.NoError(t, err)
			require.Len(t, users, 1)

			stored, err := repo.GetUserByUsername(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []byte("first"), stored.PasswordHash)
		})
	}
}

func TestSQLUserRepository_ConcurrentDuplicateUsername(t *testing.T) {
	t.Parallel()

	repo := user.NewSQLUserRepository(databasetest.NewSQLite(t))
	ctx := context.Background()

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		duplicate int
	)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.CreateUser(ctx, "bob", []byte(fmt.Sprintf("hash-%d", i)))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrUserAlreadyExists):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicate)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

//nolint:paralleltest
func TestSQLUserRepository_NotFound(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := user.NewSQLUserRepository(open(t))
			ctx := context.Background()

			_, err := repo.GetUserByUsername(ctx, "nobody")
			require.ErrorIs(t, err, domain.ErrUserNotFound)

			_, err = repo.GetUserByID(ctx, 4242)
			require.ErrorIs(t, err, domain.ErrUserNotFound)
		})
	}
}

//nolint:paralleltest
func TestSQLUserRepository_ListUsers(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			repo := user.NewSQLUserRepository(open(t))
			ctx := context.Background()

			empty, err := repo.ListUsers(ctx)
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			aliceID, err := repo.CreateUser(ctx, "alice", []byte("a"))
			require.NoError(t, err)
			bobID, err := repo.CreateUser(ctx, "bob", []byte("b"))
			require.NoError(t, err)

			want := []domain.UserSummary{
				{ID: aliceID, Username: "alice"},
				{ID: bobID, Username: "bob"},
			}

			for range 2 {
				users, err := repo.ListUsers(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, users)
			}
		})
	}
}

func TestSQLUserRepository_StoreUnavailable(t *testing.T) {
	t.Parallel()

	repo := user.NewSQLUserRepository(databasetest.NewSQLite(t))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := repo.CreateUser(ctx, "alice", []byte("a"))
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = repo.GetUserByUsername(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.ListUsers(ctx)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestSQLUserRepositoryFactory(t *testing.T) {
	t.Parallel()

	repo, err := user.SQLUserRepositoryFactory(databasetest.NewSQLite(t))()
	require.NoError(t, err)
	assert.IsType(t, &user.SQLUserRepository{}, repo)
}
