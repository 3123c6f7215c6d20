// Package subscription gates premium routes on an active entitlement.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/domain"
)

var (
	// ErrSubscriptionRequired means the caller has no active entitlement.
	ErrSubscriptionRequired = errors.New("subscription required")
	// ErrEntitlementUnavailable means the store could not answer; the gate
	// fails closed.
	ErrEntitlementUnavailable = errors.New("entitlement check unavailable")
)

// Store looks up the current subscription for a user. It returns a nil record
// and nil error when the user has none.
type Store interface {
	FindActiveSubscription(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)
}

const defaultLookupTimeout = 2 * time.Second

// Gate checks entitlements against Store on every call. Lookups are never
// cached here.
type Gate struct {
	store   Store
	clock   clock.Clock
	timeout time.Duration
}

// NewGate builds a Gate. A non-positive timeout uses the default.
func NewGate(store Store, clk clock.Clock, timeout time.Duration) *Gate {
	if clk == nil {
		clk = clock.Real()
	}
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Gate{store: store, clock: clk, timeout: timeout}
}

// CheckEntitlement returns the active record, ErrSubscriptionRequired, or an
// error wrapping ErrEntitlementUnavailable.
func (g *Gate) CheckEntitlement(ctx context.Context, principal *domain.Principal) (*domain.SubscriptionRecord, error) {
	if principal == nil || principal.UserID == "" {
		return nil, ErrSubscriptionRequired
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	record, err := g.store.FindActiveSubscription(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntitlementUnavailable, err)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntitlementUnavailable, ctx.Err())
	}
	if !record.ActiveAt(g.clock.Now()) {
		return nil, ErrSubscriptionRequired
	}
	return record, nil
}
