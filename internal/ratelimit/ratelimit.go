// Package ratelimit implements a Redis-backed fixed-window limiter with a
// cool-down block once the window budget is exhausted.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts hits per key in Redis. Keys are namespaced by prefix.
type Limiter struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	block  time.Duration
}

// New returns a limiter that allows limit hits per window and blocks a key
// for block once it goes over.
func New(rdb redis.UniversalClient, prefix string, limit int, window, block time.Duration) (*Limiter, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if limit < 1 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}
	if block <= 0 {
		block = window
	}
	return &Limiter{rdb: rdb, prefix: prefix, limit: limit, window: window, block: block}, nil
}

// Allow records a hit for key and reports whether it is within budget.
// A non-nil error means Redis could not be consulted.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	counterKey := l.prefix + ":" + key
	blockKey := counterKey + ":blocked"

	ttl, err := l.rdb.TTL(ctx, blockKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("read block ttl: %w", err)
	}
	if ttl > 0 {
		return Result{Limit: l.limit, RetryAfter: ttl}, nil
	}

	count, err := l.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("increment counter: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, counterKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("set window expiry: %w", err)
		}
	}

	if count > int64(l.limit) {
		pipe := l.rdb.TxPipeline()
		pipe.Set(ctx, blockKey, "1", l.block)
		pipe.Del(ctx, counterKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return Result{}, fmt.Errorf("block key: %w", err)
		}
		return Result{Limit: l.limit, RetryAfter: l.block}, nil
	}

	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - int(count),
	}, nil
}

// Reset clears the counter and any block for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	counterKey := l.prefix + ":" + key
	return l.rdb.Del(ctx, counterKey, counterKey+":blocked").Err()
}
