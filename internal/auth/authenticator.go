package auth

import (
	"fmt"
	"strings"

	"github.com/spec-kit/learning-api/internal/domain"
)

// Authenticator turns an Authorization header into a Principal.
type Authenticator struct {
	tokens *TokenManager
}

// NewAuthenticator constructs an Authenticator over tokens.
func NewAuthenticator(tokens *TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate verifies a "Bearer <token>" header value. It returns
// ErrMissingCredential, ErrInvalidSignature or ErrExpired on failure.
func (a *Authenticator) Authenticate(header string) (*domain.Principal, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrMissingCredential
	}

	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidSignature)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return &domain.Principal{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     role,
		TierHint: claims.Tier,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
