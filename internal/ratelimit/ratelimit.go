// Package ratelimit implements a Redis backed fixed-window limiter used to
// slow down password guessing on login.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docregistry/apiserver/config"
)

// fixedWindow increments the counter for KEYS[1] and starts its window on
// the first hit. Returns {count, ttl_ms}.
var fixedWindow = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows at most limit hits per key and window. A nil Limiter, or
// one without a client, allows everything.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "docregistry:ratelimit"}
}

// NewRedisClient connects to cfg.Addr. It returns nil and no error when
// Redis is not configured.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Enabled reports whether hits are actually counted.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rdb != nil
}

// Allow records a hit for key. Errors from Redis are returned together with
// an allowing decision so callers can fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{Allowed: true, Remaining: -1}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{Allowed: true, Remaining: -1}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	return decide(res[0], res[1], l.limit), nil
}

func decide(count, ttlMillis int64, limit int) Decision {
	remaining := limit - int(count)
	if remaining >= 0 {
		return Decision{Allowed: true, Remaining: remaining}
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: time.Duration(ttlMillis) * time.Millisecond}
}
