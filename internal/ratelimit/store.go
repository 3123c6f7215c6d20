package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store keeps fixed-window counters. Implementations must make Take atomic
// per key.
type Store interface {
	// Take admits one hit for key under (limit, window) at now.
	Take(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error)
	// Release returns one admitted hit to key when the window that admitted
	// it is still current.
	Release(ctx context.Context, key string, windowStart time.Time) error
}

// Sweeper is implemented by stores that hold idle buckets in memory.
type Sweeper interface {
	Sweep(now time.Time) int
}

const defaultShards = 64

type bucket struct {
	windowStart time.Time
	window      time.Duration
	count       int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// MemoryStore is a process-local Store. Keys are spread over shards, each
// with its own mutex, so unrelated keys rarely contend.
type MemoryStore struct {
	shards []*shard
}

// NewMemoryStore builds a store with n shards (default when n <= 0).
func NewMemoryStore(n int) *MemoryStore {
	if n <= 0 {
		n = defaultShards
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return &MemoryStore{shards: shards}
}

func (s *MemoryStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[key]
	if !ok || !now.Before(b.windowStart.Add(window)) {
		b = &bucket{windowStart: now, window: window, count: 1}
		sh.buckets[key] = b
		return admitted(b, limit), nil
	}
	if b.count < limit {
		b.count++
		return admitted(b, limit), nil
	}

	resetAt := b.windowStart.Add(window)
	return Decision{
		Admitted:    false,
		Limit:       limit,
		Remaining:   0,
		WindowStart: b.windowStart,
		ResetAt:     resetAt,
		RetryAfter:  resetAt.Sub(now),
	}, nil
}

func admitted(b *bucket, limit int) Decision {
	return Decision{
		Admitted:    true,
		Limit:       limit,
		Remaining:   limit - b.count,
		WindowStart: b.windowStart,
		ResetAt:     b.windowStart.Add(b.window),
	}
}

func (s *MemoryStore) Release(_ context.Context, key string, windowStart time.Time) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if b, ok := sh.buckets[key]; ok && b.windowStart.Equal(windowStart) && b.count > 0 {
		b.count--
	}
	return nil
}

// Sweep drops buckets whose window has ended; such buckets would be reset on
// their next hit anyway.
func (s *MemoryStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, b := range sh.buckets {
			if !now.Before(b.windowStart.Add(b.window)) {
				delete(sh.buckets, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of live buckets.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}
