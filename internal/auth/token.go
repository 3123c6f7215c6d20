package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/domain"
)

var (
	// ErrMissingCredential means no usable bearer credential was presented.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidSignature covers tampered, malformed or wrong-key tokens.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired means the token's exp claim is at or before now.
	ErrExpired = errors.New("token expired")
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int, clk clock.Clock) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, clock: clk}
}

// Claims describes JWT payload.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Tier  string `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the user.
func (tm *TokenManager) GenerateToken(p domain.Principal) (string, time.Time, error) {
	now := tm.clock.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Email: p.Email,
		Role:  string(p.Role),
		Tier:  p.TierHint,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the token and returns its claims. Expiry is decided
// before the signature so an expired token reports ErrExpired whatever its
// signature.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingCredential
	}

	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, unverified); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if unverified.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: exp claim required", ErrInvalidSignature)
	}
	if !tm.clock.Now().Before(unverified.ExpiresAt.Time) {
		return nil, ErrExpired
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.clock.Now),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
