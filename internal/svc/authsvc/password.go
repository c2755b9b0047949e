package authsvc

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/sampleapp/internal/domain"
)

// MaxPasswordLength is the longest password bcrypt accepts, in bytes.
const MaxPasswordLength = 72

// dummyPassword is hashed once per service and compared against when a login
// names an unknown user, so both failure paths cost one bcrypt comparison.
const dummyPassword = "sampleapp-dummy-password"

func validateCredentials(username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", domain.ErrInvalidInput)
	}

	if password == "" {
		return fmt.Errorf("%w: empty password", domain.ErrInvalidInput)
	}

	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: password longer than %d bytes", domain.ErrInvalidInput, MaxPasswordLength)
	}

	return nil
}

func hashPassword(password string, cost int) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, errors.Join(domain.ErrInvalidInput, err)
		}

		return nil, fmt.Errorf("generate hash: %w", err)
	}

	return hash, nil
}

// comparePassword returns domain.ErrInvalidCredentials on mismatch and a
// plain error when the stored hash itself is unusable.
func comparePassword(compare func(hash, password []byte) error, hash []byte, password string) error {
	err := compare(hash, []byte(password))
	if err == nil {
		return nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrInvalidCredentials
	}

	return fmt.Errorf("compare hash: %w", err)
}
