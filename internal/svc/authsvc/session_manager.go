package authsvc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
	"github.com/mkrupp/sampleapp/internal/repo/session"
	"github.com/mkrupp/sampleapp/internal/repo/user"
	"github.com/mkrupp/sampleapp/internal/util/encoding"
)

// SessionTokenSize is the number of random bytes in a session token.
const SessionTokenSize = 32

// SessionManager binds opaque per-browser tokens to user IDs.
//
// A token is anonymous until Establish issues it; Clear revokes it; Resolve
// maps it back to an identity on every request. Only the SHA-256 digest of a
// token is stored, so a leaked sessions table cannot be replayed.
type SessionManager struct {
	Config      AuthConfig
	SessionRepo session.Repository
	UserRepo    user.Repository
	Log         logging.Logger

	// Now returns the current time; tests replace it to move past expiry.
	Now func() time.Time
}

// NewSessionManager creates a new SessionManager from the given repository factories.
func NewSessionManager(
	sessionRepoFactory session.RepositoryFactory,
	userRepoFactory user.RepositoryFactory,
	cfg AuthConfig,
) (*SessionManager, error) {
	sessionRepo, err := sessionRepoFactory()
	if err != nil {
		return nil, fmt.Errorf("new session repo: %w", err)
	}

	userRepo, err := userRepoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &SessionManager{
		Config:      cfg,
		SessionRepo: sessionRepo,
		UserRepo:    userRepo,
		Log:         logging.GetLogger("svc.authsvc.session_manager"),
		Now:         time.Now,
	}, nil
}

// Establish starts a session for userID and returns the token to hand to the
// client together with its expiry.
func (m *SessionManager) Establish(ctx context.Context, userID int64) (_ string, _ time.Time, err error) {
	log := m.Log.With("user_id", userID)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "establish session failed", "error", err)
		} else {
			log.DebugContext(ctx, "session established")
		}
	}()

	now := m.Now()

	if _, err := m.SessionRepo.DeleteExpiredSessions(ctx, now.Unix()); err != nil {
		log.WarnContext(ctx, "purge expired sessions failed", "error", err)
	}

	raw := make([]byte, SessionTokenSize)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}

	expiresAt := now.Add(time.Duration(m.Config.SessionTTL * int64(time.Second)))

	if err := m.SessionRepo.CreateSession(ctx, &domain.Session{
		ID:        digest(raw),
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	return encoding.EncodeCrockfordB32LC(raw), expiresAt, nil
}

// Clear revokes the session behind token. Clearing an empty, malformed or
// already revoked token is a no-op.
func (m *SessionManager) Clear(ctx context.Context, token string) error {
	id, ok := sessionID(token)
	if !ok {
		return nil
	}

	if err := m.SessionRepo.DeleteSession(ctx, id); err != nil {
		m.Log.ErrorContext(ctx, "clear session failed", "error", err)

		return fmt.Errorf("delete session: %w", err)
	}

	m.Log.DebugContext(ctx, "session cleared")

	return nil
}

// Resolve maps token to the identity of a live session. Unknown, expired and
// revoked tokens, and sessions whose user no longer exists, resolve to
// (zero, false, nil). Only store failures are returned as errors.
func (m *SessionManager) Resolve(ctx context.Context, token string) (domain.Identity, bool, error) {
	id, ok := sessionID(token)
	if !ok {
		return domain.Identity{}, false, nil
	}

	sess, err := m.SessionRepo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Identity{}, false, nil
		}

		return domain.Identity{}, false, fmt.Errorf("get session: %w", err)
	}

	if sess.Expired(m.Now().Unix()) {
		m.discard(ctx, id, "session expired")

		return domain.Identity{}, false, nil
	}

	u, err := m.UserRepo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			m.discard(ctx, id, "session user vanished")

			return domain.Identity{}, false, nil
		}

		return domain.Identity{}, false, fmt.Errorf("get user: %w", err)
	}

	return domain.Identity{UserID: u.ID, Username: u.Username}, true, nil
}

func (m *SessionManager) discard(ctx context.Context, id, reason string) {
	if err := m.SessionRepo.DeleteSession(ctx, id); err != nil {
		m.Log.WarnContext(ctx, "discard session failed", "reason", reason, "error", err)

		return
	}

	m.Log.DebugContext(ctx, "session discarded", "reason", reason)
}

// sessionID returns the storage key for a client token, or false when the
// token could not have been issued by Establish.
func sessionID(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	raw, err := encoding.DecodeCrockfordB32LC(token)
	if err != nil || len(raw) != SessionTokenSize {
		return "", false
	}

	return digest(raw), true
}

func digest(raw []byte) string {
	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:])
}
