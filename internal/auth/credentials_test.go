package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCredentialsCheck(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-pw"), bcrypt.MinCost)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		creds    Credentials
		user     string
		pass     string
		expected bool
	}{
		{"plain match", Credentials{Username: "qb", Password: "pw"}, "qb", "pw", true},
		{"wrong password", Credentials{Username: "qb", Password: "pw"}, "qb", "nope", false},
		{"wrong user", Credentials{Username: "qb", Password: "pw"}, "other", "pw", false},
		{"nothing configured", Credentials{}, "", "", false},
		{"empty password configured", Credentials{Username: "qb"}, "qb", "", false},
		{"bcrypt match", Credentials{Username: "qb", PasswordHash: string(hash)}, "qb", "hashed-pw", true},
		{"bcrypt wins over plain", Credentials{Username: "qb", Password: "pw", PasswordHash: string(hash)}, "qb", "pw", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.creds.Check(tc.user, tc.pass))
		})
	}
}

func TestCredentialsEnabled(t *testing.T) {
	assert.False(t, Credentials{}.Enabled())
	assert.False(t, Credentials{Username: "qb"}.Enabled())
	assert.True(t, Credentials{Username: "qb", PasswordHash: "$2a$"}.Enabled())
}
