package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/learning-api/internal/domain"
)

func TestAuthenticator_Authenticate(t *testing.T) {
	tm, clk := newManager(t)
	a := NewAuthenticator(tm)

	token, _, err := tm.GenerateToken(domain.Principal{UserID: "u-7", Email: "u7@example.com", Role: domain.RoleUser})
	require.NoError(t, err)

	p, err := a.Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, &domain.Principal{UserID: "u-7", Email: "u7@example.com", Role: domain.RoleUser}, p)

	p, err = a.Authenticate("bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "u-7", p.UserID)

	clk.Advance(16 * time.Minute)
	_, err = a.Authenticate("Bearer " + token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestAuthenticator_MissingCredential(t *testing.T) {
	tm, _ := newManager(t)
	a := NewAuthenticator(tm)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz", "token-without-scheme"} {
		_, err := a.Authenticate(header)
		assert.ErrorIs(t, err, ErrMissingCredential, "header %q", header)
	}
}

func TestAuthenticator_UnknownRole(t *testing.T) {
	tm, _ := newManager(t)
	a := NewAuthenticator(tm)

	claims := &Claims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = a.Authenticate("Bearer " + token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
