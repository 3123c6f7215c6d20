package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/learning-api/internal/auth"
	"github.com/spec-kit/learning-api/internal/domain"
	"github.com/spec-kit/learning-api/internal/repository"
)

// ErrInvalidCredentials covers unknown emails, wrong passwords and
// suspended accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService coordinates the login flow.
type AuthService struct {
	users    repository.UserRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{users: users, tokenMgr: tokens}
}

// Login authenticates a user by email and password and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = auth.ComparePassword("", password)
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if user.Status != domain.UserStatusActive {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, exp, err := s.tokenMgr.GenerateToken(domain.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}
