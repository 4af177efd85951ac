// Package auth checks the static accounts used by the connector session
// and the write API.
package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Checker validates a username and password.
type Checker interface {
	Check(username, password string) bool
}

// Credentials is one account. PasswordHash is a bcrypt hash and takes
// precedence over Password.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Enabled reports whether a usable account is configured.
func (c Credentials) Enabled() bool {
	return c.Username != "" && (c.Password != "" || c.PasswordHash != "")
}

// Check compares in constant time. An account with no password never
// matches.
func (c Credentials) Check(username, password string) bool {
	if !c.Enabled() || subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) != 1 {
		return false
	}
	if c.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
}
