package authsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
	"github.com/mkrupp/sampleapp/internal/repo/user"
)

// AuthConfig contains configuration parameters for the authentication service.
type AuthConfig struct {
	// BcryptCost is the work factor used when hashing new passwords
	BcryptCost int64 `env:"BCRYPT_COST" default:"10"`

	// SessionTTL is the validity duration of login sessions in seconds
	SessionTTL int64 `env:"SESSION_TTL" default:"86400"` // 24h
}

// AuthService provides user registration, credential verification and the user listing.
type AuthService struct {
	Config   AuthConfig
	UserRepo user.Repository
	Log      logging.Logger

	// CompareHash checks a password against a stored hash. Defaults to
	// bcrypt.CompareHashAndPassword.
	CompareHash func(hash, password []byte) error

	dummyHash     []byte
	dummyHashErr  error
	dummyHashOnce sync.Once
}

// NewAuthService creates a new AuthService with the given user repository factory and configuration.
// Returns an error if the user repository cannot be created or the bcrypt cost is out of range.
func NewAuthService(repoFactory user.RepositoryFactory, cfg AuthConfig) (*AuthService, error) {
	log := logging.GetLogger("svc.authsvc.auth_service")

	if cfg.BcryptCost > int64(bcrypt.MaxCost) {
		return nil, fmt.Errorf("auth config: %w", bcrypt.InvalidCostError(cfg.BcryptCost))
	}

	userRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &AuthService{
		Config:   cfg,
		UserRepo: userRepo,
		Log:      log,
	}, nil
}

// RegisterUser creates a new user account with the given username and password.
// The password is hashed with bcrypt before storage and never leaves this call.
// Returns the new user's ID, or ErrUserAlreadyExists if the username is taken.
func (s *AuthService) RegisterUser(ctx context.Context, username, password string) (_ int64, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "user registered")
		case rejected(err):
			log.DebugContext(ctx, "register user rejected", "error", err)
		default:
			log.ErrorContext(ctx, "register user failed", "error", err)
		}
	}()

	if err := validateCredentials(username, password); err != nil {
		return 0, err
	}

	passwordHash, err := hashPassword(password, s.cost())
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.UserRepo.CreateUser(ctx, username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	log = log.With("user_id", id)

	return id, nil
}

// Authenticate verifies a username/password pair and returns the matching user.
// An unknown username and a wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		switch {
		case err == nil:
			log.DebugContext(ctx, "authenticate successful")
		case rejected(err):
			log.DebugContext(ctx, "authenticate rejected", "error", err)
		default:
			log.ErrorContext(ctx, "authenticate failed", "error", err)
		}
	}()

	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: empty username or password", domain.ErrInvalidInput)
	}

	// No stored hash can match, but the caller must not learn whether the
	// user exists from how long the answer took.
	if len(password) > MaxPasswordLength {
		s.compareDummy(password[:MaxPasswordLength])

		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.UserRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.compareDummy(password)

			return nil, domain.ErrInvalidCredentials
		}

		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := comparePassword(s.compareHash(), user.PasswordHash, password); err != nil {
		return nil, err
	}

	return user, nil
}

// ListUsers returns the public projection of every registered user.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.UserRepo.ListUsers(ctx)
	if err != nil {
		s.Log.ErrorContext(ctx, "list users failed", "error", err)

		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

func (s *AuthService) cost() int {
	if s.Config.BcryptCost < int64(bcrypt.MinCost) {
		return bcrypt.DefaultCost
	}

	return int(s.Config.BcryptCost)
}

func (s *AuthService) compareDummy(password string) {
	s.dummyHashOnce.Do(func() {
		s.dummyHash, s.dummyHashErr = hashPassword(dummyPassword, s.cost())
	})

	if s.dummyHashErr != nil {
		return
	}

	_ = s.compareHash()(s.dummyHash, []byte(password))
}

func (s *AuthService) compareHash() func(hash, password []byte) error {
	if s.CompareHash != nil {
		return s.CompareHash
	}

	return bcrypt.CompareHashAndPassword
}

// rejected reports whether err was caused by the caller's input rather than
// by the service or its store.
func rejected(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredentials) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUserAlreadyExists)
}
