// Package cache memoizes successful GET responses. It is an optimization
// only: every backend failure degrades to a miss and the request proceeds.
package cache

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/domain"
)

// Preset durations for route declarations.
const (
	Short    = time.Minute
	Medium   = 5 * time.Minute
	Long     = 30 * time.Minute
	VeryLong = time.Hour
)

// Entry is a stored response.
type Entry struct {
	Body        []byte        `json:"body"`
	Status      int           `json:"status"`
	ContentType string        `json:"content_type,omitempty"`
	StoredAt    time.Time     `json:"stored_at"`
	TTL         time.Duration `json:"ttl"`
}

// FreshAt reports whether the entry may still be served at now.
func (e Entry) FreshAt(now time.Time) bool {
	return now.Before(e.StoredAt.Add(e.TTL))
}

// Backend stores entries. Physical expiry is optional; Cache rechecks
// freshness on every read.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Flush(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Sweeper is implemented by backends that hold expired entries until removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Stats summarises cache activity.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Keys    int    `json:"keys"`
	Backend string `json:"backend"`
}

// Cache is the response cache used by the pipeline.
type Cache struct {
	backend Backend
	name    string
	clock   clock.Clock
	timeout time.Duration
	logger  *zap.Logger
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// Options tune a Cache.
type Options struct {
	Name    string
	Clock   clock.Clock
	Timeout time.Duration
	Logger  *zap.Logger
}

// New wraps backend.
func New(backend Backend, opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Name == "" {
		opts.Name = "memory"
	}
	return &Cache{
		backend: backend,
		name:    opts.Name,
		clock:   opts.Clock,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Get returns a fresh entry for key.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("backend", c.name), zap.Error(err))
		c.misses.Add(1)
		return Entry{}, false
	}
	if !ok || !entry.FreshAt(c.clock.Now()) {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return entry, true
}

// Put stores entry under key for ttl. Failures are logged and dropped.
func (c *Cache) Put(ctx context.Context, key string, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	entry.StoredAt = c.clock.Now()
	entry.TTL = ttl
	if err := c.backend.Set(ctx, key, entry); err != nil {
		c.logger.Warn("cache put failed", zap.String("backend", c.name), zap.Error(err))
	}
}

// Invalidate removes key and every key it prefixes. It returns the number of
// entries removed.
func (c *Cache) Invalidate(ctx context.Context, keyOrPrefix string) int {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	n, err := c.backend.DeletePrefix(ctx, keyOrPrefix)
	if err != nil {
		c.logger.Error("cache invalidate failed", zap.String("backend", c.name), zap.String("prefix", keyOrPrefix), zap.Error(err))
	}
	return n
}

// Flush drops every entry.
func (c *Cache) Flush(ctx context.Context) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.backend.Flush(ctx); err != nil {
		c.logger.Error("cache flush failed", zap.String("backend", c.name), zap.Error(err))
	}
}

// Stats reports counters and the current key count (-1 when unknown).
func (c *Cache) Stats(ctx context.Context) Stats {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	keys, err := c.backend.Len(ctx)
	if err != nil {
		keys = -1
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Keys: keys, Backend: c.name}
}

// StartSweeper reclaims expired entries every interval until ctx is done.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	sweeper, ok := c.backend.(Sweeper)
	if !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sweeper.Sweep(c.clock.Now()); n > 0 {
					c.logger.Debug("cache entries swept", zap.Int("removed", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Scope values used in keys.
const (
	ScopeShared = "shared"
	ScopeAnon   = "anon"
)

// ScopeFor returns the key scope for a request. Principal-scoped routes key
// by user id so callers never observe each other's entries.
func ScopeFor(principal *domain.Principal, perPrincipal bool) string {
	if !perPrincipal {
		return ScopeShared
	}
	if principal == nil || principal.UserID == "" {
		return ScopeAnon
	}
	return "u:" + principal.UserID
}

// KeyFor builds "path?normalized-query|scope". Query parameters are sorted by
// name so equivalent URLs share an entry. The path leads so Invalidate can
// target a resource by path prefix.
func KeyFor(path, rawQuery, scope string) string {
	var b strings.Builder
	b.WriteString(path)
	if rawQuery != "" {
		if values, err := url.ParseQuery(rawQuery); err == nil {
			b.WriteByte('?')
			b.WriteString(values.Encode())
		} else {
			b.WriteByte('?')
			b.WriteString(rawQuery)
		}
	}
	b.WriteByte('|')
	b.WriteString(scope)
	return b.String()
}
