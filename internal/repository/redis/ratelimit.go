package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "ratelimit:"
	rateWindow      = time.Minute
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed one-minute window limiter keyed by caller
type RateLimiter struct {
	client *Client
	limit  int
}

// NewRateLimiter allows requestsPerMinute plus burst calls per key and window
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  requestsPerMinute + burst,
	}
}

func rateLimitKey(key string, now time.Time) string {
	return fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, now.Truncate(rateWindow).Unix())
}

// Allow counts one call for key in the current window
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	fullKey := rateLimitKey(key, now)

	pipe := r.client.rdb.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, rateWindow)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Decision{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := int(incr.Val())
	return Decision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: max(r.limit-count, 0),
		ResetAt:   now.Truncate(rateWindow).Add(rateWindow),
	}, nil
}
