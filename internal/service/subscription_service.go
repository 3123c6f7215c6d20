package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/domain"
	"github.com/spec-kit/learning-api/internal/repository"
)

// Provider event types acted upon. Anything else is acknowledged and ignored.
const (
	ProviderSubscriptionCancelled = "subscription.cancelled"
	ProviderSubscriptionExpired   = "subscription.expired"
)

// ErrMissingUser is returned for lifecycle events without a user id.
var ErrMissingUser = errors.New("event carries no user id")

// SubscriptionService applies subscription lifecycle changes.
type SubscriptionService struct {
	subscriptions repository.SubscriptionRepository
	clock         clock.Clock
	logger        *zap.Logger
}

// NewSubscriptionService creates the service.
func NewSubscriptionService(subscriptions repository.SubscriptionRepository, clk clock.Clock, logger *zap.Logger) *SubscriptionService {
	if clk == nil {
		clk = clock.Real()
	}
	return &SubscriptionService{subscriptions: subscriptions, clock: clk, logger: logger}
}

// ApplyProviderEvent ends the user's active subscription for cancellation
// and expiry events. It reports whether the event type was recognised.
func (s *SubscriptionService) ApplyProviderEvent(ctx context.Context, eventID, eventType, userID string) (bool, error) {
	var status domain.SubscriptionStatus
	switch eventType {
	case ProviderSubscriptionCancelled:
		status = domain.SubscriptionCancelled
	case ProviderSubscriptionExpired:
		status = domain.SubscriptionExpired
	default:
		s.logger.Info("provider event ignored", zap.String("event_id", eventID), zap.String("type", eventType))
		return false, nil
	}
	if userID == "" {
		return true, ErrMissingUser
	}

	changed, err := s.subscriptions.EndActive(ctx, userID, status)
	if err != nil {
		return true, err
	}
	s.logger.Info("provider event applied",
		zap.String("event_id", eventID),
		zap.String("type", eventType),
		zap.String("user_id", userID),
		zap.Int64("updated", changed),
	)
	return true, nil
}

// ExpireLapsed marks active records whose end date has passed as expired.
// The gate already refuses them; this keeps stored status in step.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int64, error) {
	return s.subscriptions.ExpireLapsed(ctx, s.clock.Now())
}
