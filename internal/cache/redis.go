package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a match list is reused before the model is asked again.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "flowmart:ai:"

// kv is the subset of the go-redis client used by MatchCache.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// MatchCache stores AI search match lists in Redis. Entries are scoped to a
// catalog fingerprint so a reloaded catalog never serves stale ids.
type MatchCache struct {
	rdb kv
	ttl time.Duration
}

// NewRedis connects to the Redis server at addr.
func NewRedis(addr string, ttl time.Duration) *MatchCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return newMatchCache(rdb, ttl)
}

func newMatchCache(rdb kv, ttl time.Duration) *MatchCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MatchCache{rdb: rdb, ttl: ttl}
}

// Ping checks connectivity when the underlying client supports it.
func (c *MatchCache) Ping(ctx context.Context) error {
	p, ok := c.rdb.(interface {
		Ping(ctx context.Context) *redis.StatusCmd
	})
	if !ok {
		return nil
	}
	return p.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *MatchCache) Close() error {
	if cl, ok := c.rdb.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

// Key returns the cache key for a query against the catalog identified by
// fingerprint. Queries differing only in case or surrounding whitespace
// share a key.
func Key(query, fingerprint string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(norm))
	return keyPrefix + fingerprint + ":" + hex.EncodeToString(sum[:16])
}

// Get returns the cached match list. The boolean is false on a miss.
func (c *MatchCache) Get(ctx context.Context, query, fingerprint string) ([]string, bool, error) {
	val, err := c.rdb.Get(ctx, Key(query, fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		return nil, false, fmt.Errorf("decoding cached matches: %w", err)
	}
	return ids, true, nil
}

// Set stores ids for the query with the configured TTL.
func (c *MatchCache) Set(ctx context.Context, query, fingerprint string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, Key(query, fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
