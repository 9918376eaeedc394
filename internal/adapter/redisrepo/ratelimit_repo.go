// Package redisrepo provides a Redis-backed rate limit store for multi-node
// deployments where the Postgres row would become a hot spot.
package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pawtraits-dev/pawtraits-sub011/internal/domain"
)

// RateLimitRepositoryRedis implements domain.RateLimitRepository on Redis.
// The counter key carries a TTL equal to the window length, so the window
// start is recovered from the remaining TTL and expiry doubles as cleanup.
// INCR gives the atomic increment the limiter contract requires.
type RateLimitRepositoryRedis struct {
	client *redis.Client
	window time.Duration
}

// NewRateLimitRepository creates a Redis rate limit repository. The window
// length must match the limiter configuration since it shapes the key TTLs.
func NewRateLimitRepository(client *redis.Client, window time.Duration) *RateLimitRepositoryRedis {
	return &RateLimitRepositoryRedis{client: client, window: window}
}

func (r *RateLimitRepositoryRedis) countKey(clientKey, endpoint string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpoint, clientKey)
}

func (r *RateLimitRepositoryRedis) blockKey(clientKey, endpoint string) string {
	return r.countKey(clientKey, endpoint) + ":blocked"
}

// CurrentWindow reconstructs the window from the counter value and its TTL.
func (r *RateLimitRepositoryRedis) CurrentWindow(ctx context.Context, clientKey, endpoint string) (*domain.RateLimitWindow, error) {
	key := r.countKey(clientKey, endpoint)

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	blockCmd := pipe.Get(ctx, r.blockKey(clientKey, endpoint))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	count, err := getCmd.Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	ttl, err := ttlCmd.Result()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		// Key exists without expiry only if a previous PEXPIRE was lost; treat
		// the window as fresh-from-now rather than guessing.
		ttl = r.window
	}

	win := &domain.RateLimitWindow{
		ClientKey:    clientKey,
		Endpoint:     endpoint,
		WindowStart:  time.Now().Add(ttl - r.window),
		RequestCount: count,
	}

	if raw, err := blockCmd.Result(); err == nil {
		if until, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			win.BlockedUntil = &until
		}
	}

	return win, nil
}

// IncrementWindow atomically increments the counter, arming the TTL on the
// first request of a bucket. Expiry handles stale-window reset, so notBefore
// is unused here.
func (r *RateLimitRepositoryRedis) IncrementWindow(ctx context.Context, clientKey, endpoint string, now, notBefore time.Time) (*domain.RateLimitWindow, error) {
	key := r.countKey(clientKey, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, key, r.window).Err(); err != nil {
			return nil, err
		}
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = r.window
	}

	return &domain.RateLimitWindow{
		ClientKey:    clientKey,
		Endpoint:     endpoint,
		WindowStart:  now.Add(ttl - r.window),
		RequestCount: int(count),
	}, nil
}

// SetBlockedUntil stores the block marker with an expiry at the window end.
func (r *RateLimitRepositoryRedis) SetBlockedUntil(ctx context.Context, clientKey, endpoint string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.blockKey(clientKey, endpoint), until.Format(time.RFC3339Nano), ttl).Err()
}

// DeleteBefore is a no-op on Redis: key TTLs already retire stale windows.
func (r *RateLimitRepositoryRedis) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

var _ domain.RateLimitRepository = (*RateLimitRepositoryRedis)(nil)
