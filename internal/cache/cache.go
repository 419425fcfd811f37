// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

// Package cache provides a generic keyed blob store over Redis with
// sliding expiration.
//
// The cache owns no business identity: values are opaque JSON payloads and
// the meaning of a key belongs to its caller. Callers are also responsible
// for using a consistent payload type per key; storing one type and
// retrieving another is a programmer error, not a handled failure mode.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultTTL is the sliding expiration window applied when none is
// configured. Matches the 30-minute idle timeout the session layer uses.
const DefaultTTL = 30 * time.Minute

// scanBatchSize is the COUNT hint passed to SCAN during key invalidation.
const scanBatchSize = 100

// Engine is the subset of the go-redis client the cache uses. Declared as
// an interface so tests can substitute a fake engine without a server.
type Engine interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Options configures a Client.
type Options struct {
	// Addr is the Redis server address in "host:port" form.
	Addr string

	// Prefix namespaces every key written by this instance (e.g.
	// "contactdir:"). Optional.
	Prefix string

	// TTL is the sliding expiration window. Zero means DefaultTTL.
	TTL time.Duration
}

// Client is a keyed blob store with sliding expiration. Every successful
// read refreshes the TTL clock for the key — expiry counts from last
// access, not from creation.
type Client struct {
	engine Engine
	prefix string
	ttl    time.Duration
}

// New wraps an existing engine. Used directly by tests; production code
// goes through Dial.
func New(engine Engine, opts Options) *Client {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{engine: engine, prefix: opts.Prefix, ttl: ttl}
}

// Dial connects to Redis and verifies the connection with a ping.
// Connection establishment is the only place the cache retries; per-call
// failures are always surfaced to the caller.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: opts.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, oops.Code("CACHE_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return New(rdb, opts), nil
}

// TTL returns the configured sliding expiration window.
func (c *Client) TTL() time.Duration {
	return c.ttl
}

// Ping verifies the backing engine is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.engine.Ping(ctx).Err(); err != nil {
		return oops.Code("CACHE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}
	if err := c.engine.Del(ctx, prefixed...).Err(); err != nil {
		return oops.Code("CACHE_DELETE_FAILED").
			With("keys", keys).
			Wrap(err)
	}
	return nil
}

// DeleteMatching removes every key whose unprefixed name matches the glob
// pattern (e.g. "session:*"). SCAN pages through this instance's keyspace;
// the glob match runs client-side so patterns follow glob syntax exactly
// rather than Redis MATCH semantics.
func (c *Client) DeleteMatching(ctx context.Context, pattern string) (int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, oops.Code("CACHE_BAD_PATTERN").
			With("pattern", pattern).
			Wrap(err)
	}

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.engine.Scan(ctx, cursor, c.prefix+"*", scanBatchSize).Result()
		if err != nil {
			return deleted, oops.Code("CACHE_SCAN_FAILED").
				With("pattern", pattern).
				Wrap(err)
		}

		var matched []string
		for _, k := range keys {
			if g.Match(strings.TrimPrefix(k, c.prefix)) {
				matched = append(matched, k)
			}
		}
		if len(matched) > 0 {
			if err := c.engine.Del(ctx, matched...).Err(); err != nil {
				return deleted, oops.Code("CACHE_DELETE_FAILED").
					With("pattern", pattern).
					Wrap(err)
			}
			deleted += len(matched)
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Store serializes value to JSON and writes it under key, resetting the
// sliding TTL clock. A write to an existing key overwrites it,
// last-writer-wins. An unreachable engine surfaces as an error, never as
// silent success.
func Store[T any](ctx context.Context, c *Client, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return oops.Code("CACHE_ENCODE_FAILED").
			With("key", key).
			Wrap(err)
	}
	if err := c.engine.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return oops.Code("CACHE_STORE_FAILED").
			With("key", key).
			Wrap(err)
	}
	return nil
}

// Retrieve reads and deserializes the value under key. Returns found=false
// when the key is missing or expired — never a stale value. A successful
// read refreshes the TTL (sliding expiration), which is an observable side
// effect, not an implementation detail. An unreachable engine surfaces as
// an error, never as absent.
func Retrieve[T any](ctx context.Context, c *Client, key string) (T, bool, error) {
	var zero T

	data, err := c.engine.GetEx(ctx, c.prefix+key, c.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, oops.Code("CACHE_RETRIEVE_FAILED").
			With("key", key).
			Wrap(err)
	}

	var value T
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		return zero, false, oops.Code("CACHE_DECODE_FAILED").
			With("key", key).
			Wrap(err)
	}
	return value, true, nil
}
