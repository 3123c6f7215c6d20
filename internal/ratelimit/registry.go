package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/config"
)

// Tier names.
const (
	TierGeneral  = "general"
	TierAuth     = "auth"
	TierPayment  = "payment"
	TierUpload   = "upload"
	TierMutation = "mutation"
	TierElevated = "elevated"
)

// ErrUnknownTier is returned by Lookup for names that were never registered.
var ErrUnknownTier = errors.New("unknown rate-limit tier")

// Registry holds the configured tiers, all sharing one Store.
type Registry struct {
	tiers map[string]*Limiter
	store Store
	clock clock.Clock
}

// NewRegistry builds a Limiter per policy. Duplicate or invalid policies fail.
func NewRegistry(store Store, clk clock.Clock, policies ...Policy) (*Registry, error) {
	if store == nil {
		store = NewMemoryStore(0)
	}
	if clk == nil {
		clk = clock.Real()
	}
	r := &Registry{tiers: make(map[string]*Limiter, len(policies)), store: store, clock: clk}
	for _, p := range policies {
		if _, dup := r.tiers[p.Name]; dup {
			return nil, fmt.Errorf("ratelimit: duplicate tier %s", p.Name)
		}
		l, err := New(p, store, clk)
		if err != nil {
			return nil, err
		}
		r.tiers[p.Name] = l
	}
	return r, nil
}

// Lookup returns the named tier.
func (r *Registry) Lookup(name string) (*Limiter, error) {
	l, ok := r.tiers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, name)
	}
	return l, nil
}

// Names lists registered tiers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tiers))
	for name := range r.tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartSweeper reclaims expired buckets every interval until ctx is done.
// It is a no-op for stores that do not implement Sweeper.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	sweeper, ok := r.store.(Sweeper)
	if !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sweeper.Sweep(r.clock.Now()); n > 0 && logger != nil {
					logger.Debug("rate-limit buckets swept", zap.Int("removed", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Policies maps configuration onto the standard tiers.
func Policies(cfg config.RateLimitConfig) []Policy {
	return []Policy{
		{Name: TierGeneral, Limit: cfg.General.Limit, Window: cfg.General.Window, Key: KeyByPrincipalOrIP},
		{Name: TierAuth, Limit: cfg.Auth.Limit, Window: cfg.Auth.Window, Key: KeyByIP, SkipSuccessful: true},
		{Name: TierPayment, Limit: cfg.Payment.Limit, Window: cfg.Payment.Window, Key: KeyByPrincipalOrIP},
		{Name: TierUpload, Limit: cfg.Upload.Limit, Window: cfg.Upload.Window, Key: KeyByPrincipalOrIP},
		{Name: TierMutation, Limit: cfg.Mutation.Limit, Window: cfg.Mutation.Window, Key: KeyByPrincipalOrIP},
		{Name: TierElevated, Limit: cfg.Elevated.Limit, Window: cfg.Elevated.Window, Key: KeyByPrincipalOrIP},
	}
}
