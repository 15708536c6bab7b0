package redis

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RateLimiter is a fixed-window counter per key: the first hit in a window
// starts the clock, every hit increments, and counts above the ceiling are
// refused until the window key expires. Coarse admission control, not
// correctness-critical; redis failures fail open.
type RateLimiter struct {
	client Client
	name   string
	max    int64
	window time.Duration
}

func NewRateLimiter(client Client, name string, max int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		name:   name,
		max:    max,
		window: window,
	}
}

func RateLimitKey(name, clientIP string) string {
	return "ratelimit:" + name + ":" + clientIP
}

// Allow reports whether the caller identified by clientIP is within the
// window ceiling. When refused, retryAfter carries the remaining window.
func (l *RateLimiter) Allow(ctx context.Context, clientIP string) (allowed bool, retryAfter time.Duration) {
	key := RateLimitKey(l.name, clientIP)
	count, err := l.client.IncrBy(ctx, key, 1).Result()
	if err != nil {
		log.Errorf("rate limiter %s: incr failed, failing open: %v", l.name, err)
		return true, 0
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			log.Errorf("rate limiter %s: expire failed: %v", l.name, err)
		}
	}
	if count > l.max {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return false, ttl
	}
	return true, 0
}
