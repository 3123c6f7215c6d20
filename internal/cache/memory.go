package cache

import (
	"context"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const memoryShards = 16

// MemoryBackend is a bounded in-process backend. Entries are spread across
// LRU shards so writers to different keys do not share a lock.
type MemoryBackend struct {
	shards []*lru.Cache[string, Entry]
}

// NewMemoryBackend holds up to maxEntries entries overall.
func NewMemoryBackend(maxEntries int) (*MemoryBackend, error) {
	perShard := maxEntries / memoryShards
	if perShard < 1 {
		perShard = 1
	}
	shards := make([]*lru.Cache[string, Entry], memoryShards)
	for i := range shards {
		c, err := lru.New[string, Entry](perShard)
		if err != nil {
			return nil, err
		}
		shards[i] = c
	}
	return &MemoryBackend{shards: shards}, nil
}

func (m *MemoryBackend) shard(key string) *lru.Cache[string, Entry] {
	return m.shards[xxhash.Sum64String(key)%memoryShards]
}

func (m *MemoryBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := m.shard(key).Get(key)
	return e, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, entry Entry) error {
	m.shard(key).Add(key, entry)
	return nil
}

func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, s := range m.shards {
		for _, key := range s.Keys() {
			if strings.HasPrefix(key, prefix) && s.Remove(key) {
				removed++
			}
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Flush(context.Context) error {
	for _, s := range m.shards {
		s.Purge()
	}
	return nil
}

func (m *MemoryBackend) Len(context.Context) (int, error) {
	n := 0
	for _, s := range m.shards {
		n += s.Len()
	}
	return n, nil
}

// Sweep removes entries that are no longer fresh at now.
func (m *MemoryBackend) Sweep(now time.Time) int {
	removed := 0
	for _, s := range m.shards {
		for _, key := range s.Keys() {
			if e, ok := s.Peek(key); ok && !e.FreshAt(now) && s.Remove(key) {
				removed++
			}
		}
	}
	return removed
}
