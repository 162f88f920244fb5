// Package user registers accounts and checks credentials against a persisted
// accounts table.
package user

import "errors"

var (
	ErrInvalidUsername    = errors.New("username must not be empty")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("account not found")
)

// Account is one row of the accounts table. PasswordHash never holds plaintext.
type Account struct {
	Username     string
	PasswordHash string
}
