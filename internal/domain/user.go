package domain

import "errors"

var (
	// ErrUserAlreadyExists is returned when trying to create a user with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when looking up a non-existent user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the username/password combination is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput is returned when a username or password is empty or unusable.
	ErrInvalidInput = errors.New("invalid input")
)

// User represents a registered user in the system.
type User struct {
	ID           int64  // Unique identifier, assigned by the store
	Username     string // Login username
	PasswordHash []byte // bcrypt hash of the password
	CreatedAt    int64  // Unix timestamp of account creation
}

// UserSummary is the public projection of a User exposed by the listing API.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
