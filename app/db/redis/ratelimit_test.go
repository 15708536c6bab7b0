package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToCeiling(t *testing.T) {
	client := NewMockRedisClient()
	limiter := NewRateLimiter(client, "payment", 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(ctx, "1.2.3.4")
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, retryAfter := limiter.Allow(ctx, "1.2.3.4")
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	// another client address has its own window
	allowed, _ = limiter.Allow(ctx, "5.6.7.8")
	assert.True(t, allowed)
}

func TestRateLimiterWindowReset(t *testing.T) {
	client := NewMockRedisClient()
	limiter := NewRateLimiter(client, "payment", 1, time.Minute)
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "1.2.3.4")
	assert.False(t, allowed)

	client.Forget(RateLimitKey("payment", "1.2.3.4"))

	allowed, _ = limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, allowed)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	client := NewMockRedisClient()
	client.IncrErr = errors.New("connection refused")
	limiter := NewRateLimiter(client, "payment", 1, time.Minute)

	allowed, _ := limiter.Allow(context.Background(), "1.2.3.4")
	assert.True(t, allowed)
}
