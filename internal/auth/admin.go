package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCredentials = errors.New("invalid username or password")

// Admin checks login attempts against the configured administrator account.
type Admin struct {
	username string
	hash     []byte
}

// NewAdmin builds the checker from a bcrypt hash. An empty hash disables login.
func NewAdmin(username, passwordHash string) *Admin {
	return &Admin{username: username, hash: []byte(passwordHash)}
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Check returns nil when username and password match.
func (a *Admin) Check(username, password string) error {
	if a == nil || len(a.hash) == 0 || a.username == "" {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// Always run bcrypt so unknown usernames take as long as wrong passwords.
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrBadCredentials
	}
	return nil
}
