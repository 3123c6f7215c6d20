// Package ratelimit provides fixed-window request limiting. One Limiter type
// is instantiated per tier; tiers differ only in their Policy.
//
// Fixed windows allow up to twice the limit across a window boundary. That
// burst is accepted in exchange for a single counter per key.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/learning-api/internal/clock"
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Admitted    bool
	Limit       int
	Remaining   int
	WindowStart time.Time
	ResetAt     time.Time
	// RetryAfter is set on rejection: time until the current window ends.
	RetryAfter time.Duration
}

// Subject identifies the caller for key derivation.
type Subject struct {
	IP          string
	PrincipalID string
}

// KeyFunc maps a caller to its bucket identity.
type KeyFunc func(Subject) string

// KeyByIP keys buckets by client address only.
func KeyByIP(s Subject) string {
	return "ip:" + s.IP
}

// KeyByPrincipalOrIP prefers the authenticated user and falls back to IP.
func KeyByPrincipalOrIP(s Subject) string {
	if s.PrincipalID != "" {
		return "user:" + s.PrincipalID
	}
	return "ip:" + s.IP
}

// Policy configures a tier.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
	Key    KeyFunc
	// SkipSuccessful counts only requests that end in a failure response.
	SkipSuccessful bool
}

func (p Policy) validate() error {
	switch {
	case p.Name == "":
		return errors.New("ratelimit: policy name required")
	case p.Limit < 1:
		return fmt.Errorf("ratelimit: tier %s: limit must be positive", p.Name)
	case p.Window <= 0:
		return fmt.Errorf("ratelimit: tier %s: window must be positive", p.Name)
	}
	return nil
}

// Limiter applies one Policy over a Store.
type Limiter struct {
	policy Policy
	store  Store
	clock  clock.Clock
}

// New validates policy and builds a Limiter. A nil Key defaults to
// KeyByPrincipalOrIP.
func New(policy Policy, store Store, clk clock.Clock) (*Limiter, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if policy.Key == nil {
		policy.Key = KeyByPrincipalOrIP
	}
	if store == nil {
		store = NewMemoryStore(0)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Limiter{policy: policy, store: store, clock: clk}, nil
}

// Policy returns the tier configuration.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Key composes the bucket key for a caller. The tier name is the route class:
// every route declaring the tier shares the caller's bucket.
func (l *Limiter) Key(s Subject) string {
	return l.policy.Name + ":" + l.policy.Key(s)
}

// Admit attempts to take one slot for key.
func (l *Limiter) Admit(ctx context.Context, key string) (Decision, error) {
	return l.store.Take(ctx, key, l.policy.Limit, l.policy.Window, l.clock.Now())
}

// Done settles an admitted request once its outcome is known. For
// SkipSuccessful tiers a successful request gives its slot back.
func (l *Limiter) Done(ctx context.Context, key string, d Decision, succeeded bool) error {
	if !l.policy.SkipSuccessful || !d.Admitted || !succeeded {
		return nil
	}
	return l.store.Release(ctx, key, d.WindowStart)
}
