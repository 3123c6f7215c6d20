package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisBackend stores entries as JSON under a key prefix. Redis expiry
// reclaims entries; freshness is still decided by Cache.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend namespaces every key with prefix.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, raw, entry.TTL).Err()
}

func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return r.deleteMatching(ctx, escapeGlob(r.prefix+prefix)+"*")
}

func (r *RedisBackend) Flush(ctx context.Context) error {
	_, err := r.deleteMatching(ctx, escapeGlob(r.prefix)+"*")
	return err
}

func (r *RedisBackend) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, escapeGlob(r.prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

func (r *RedisBackend) deleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, flush()
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
