package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/learning-api/internal/auth"
	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/domain"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type stubUsers struct {
	user *domain.User
	err  error
}

func (s stubUsers) GetByID(context.Context, string) (*domain.User, error) { return s.user, s.err }

func (s stubUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.Email != email {
		return nil, pgx.ErrNoRows
	}
	return s.user, nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthService_Login(t *testing.T) {
	clk := clock.NewManual(now)
	tokens := auth.NewTokenManager("svc-secret", 30, clk)
	user := &domain.User{ID: "u-9", Email: "nine@example.com", PasswordHash: hashed(t, "pw-9"), Role: domain.RoleStaff, Status: domain.UserStatusActive}
	svc := NewAuthService(stubUsers{user: user}, tokens)

	got, token, exp, err := svc.Login(context.Background(), " nine@example.com ", "pw-9")
	require.NoError(t, err)
	assert.Equal(t, "u-9", got.ID)
	assert.Equal(t, now.Add(30*time.Minute), exp)

	principal, err := auth.NewAuthenticator(tokens).Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStaff, principal.Role)

	_, _, _, err = svc.Login(context.Background(), "nine@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.Login(context.Background(), "other@example.com", "pw-9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	user.Status = domain.UserStatusSuspended
	_, _, _, err = svc.Login(context.Background(), "nine@example.com", "pw-9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginStoreFailure(t *testing.T) {
	down := errors.New("pool closed")
	svc := NewAuthService(stubUsers{err: down}, auth.NewTokenManager("svc-secret", 30, nil))

	_, _, _, err := svc.Login(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

type stubSubscriptions struct {
	ended      map[string]domain.SubscriptionStatus
	expiredAt  time.Time
	expireErr  error
	expireRows int64
}

func (s *stubSubscriptions) FindActiveSubscription(context.Context, string) (*domain.SubscriptionRecord, error) {
	return nil, nil
}

func (s *stubSubscriptions) EndActive(_ context.Context, userID string, status domain.SubscriptionStatus) (int64, error) {
	s.ended[userID] = status
	return 1, nil
}

func (s *stubSubscriptions) ExpireLapsed(_ context.Context, at time.Time) (int64, error) {
	s.expiredAt = at
	return s.expireRows, s.expireErr
}

func TestSubscriptionService_ApplyProviderEvent(t *testing.T) {
	repo := &stubSubscriptions{ended: map[string]domain.SubscriptionStatus{}}
	svc := NewSubscriptionService(repo, clock.NewManual(now), zap.NewNop())
	ctx := context.Background()

	handled, err := svc.ApplyProviderEvent(ctx, "evt_1", ProviderSubscriptionCancelled, "u-1")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, domain.SubscriptionCancelled, repo.ended["u-1"])

	handled, err = svc.ApplyProviderEvent(ctx, "evt_2", ProviderSubscriptionExpired, "u-2")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, domain.SubscriptionExpired, repo.ended["u-2"])

	handled, err = svc.ApplyProviderEvent(ctx, "evt_3", "invoice.created", "")
	require.NoError(t, err)
	assert.False(t, handled)

	_, err = svc.ApplyProviderEvent(ctx, "evt_4", ProviderSubscriptionCancelled, "")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestSubscriptionService_ExpireLapsedUsesClock(t *testing.T) {
	repo := &stubSubscriptions{expireRows: 3}
	svc := NewSubscriptionService(repo, clock.NewManual(now), zap.NewNop())

	n, err := svc.ExpireLapsed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, now, repo.expiredAt)
}
