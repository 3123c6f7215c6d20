package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/domain"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*TokenManager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	return NewTokenManager("test-secret", 15, clk), clk
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm, _ := newManager(t)

	token, exp, err := tm.GenerateToken(domain.Principal{UserID: "u-1", Email: "a@example.com", Role: domain.RoleStaff, TierHint: "premium"})
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(15*time.Minute), exp)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, "premium", claims.Tier)
}

func TestTokenManager_ExpiredAtBoundary(t *testing.T) {
	tm, clk := newManager(t)
	token, exp, err := tm.GenerateToken(domain.Principal{UserID: "u-1", Role: domain.RoleUser})
	require.NoError(t, err)

	clk.Set(exp)
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestTokenManager_ExpiredWinsOverBadSignature(t *testing.T) {
	tm, clk := newManager(t)
	other := NewTokenManager("other-secret", 15, clk)

	forged, _, err := other.GenerateToken(domain.Principal{UserID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = tm.ParseToken(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	clk.Advance(time.Hour)
	_, err = tm.ParseToken(forged)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	tm, _ := newManager(t)
	claims := &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.ParseToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenManager_MalformedAndMissingExp(t *testing.T) {
	tm, _ := newManager(t)

	_, err := tm.ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = tm.ParseToken("")
	assert.ErrorIs(t, err, ErrMissingCredential)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: "user"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(noExp)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenManager_TamperedPayload(t *testing.T) {
	tm, _ := newManager(t)
	token, _, err := tm.GenerateToken(domain.Principal{UserID: "u-1", Role: domain.RoleUser})
	require.NoError(t, err)

	elevated, _, err := tm.GenerateToken(domain.Principal{UserID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	// splice the admin payload onto the user signature
	tp := strings.Split(token, ".")
	ep := strings.Split(elevated, ".")
	_, err = tm.ParseToken(tp[0] + "." + ep[1] + "." + tp[2])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
