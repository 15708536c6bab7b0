package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	r "github.com/go-redis/redis/v8"
)

// MockRedisClient is a mock for the Redis client in the redis package.
type MockRedisClient struct {
	Client
	mu      sync.Mutex
	data    map[string]int64
	strings map[string]string
	expiry  map[string]time.Duration

	IncrErr error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		data:    make(map[string]int64),
		strings: make(map[string]string),
		expiry:  make(map[string]time.Duration),
	}
}

func (m *MockRedisClient) IncrBy(ctx context.Context, key string, value int64) *r.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := r.NewIntCmd(ctx)
	if m.IncrErr != nil {
		cmd.SetErr(m.IncrErr)
		return cmd
	}
	m.data[key] += value
	cmd.SetVal(m.data[key])
	return cmd
}

func (m *MockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) *r.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = expiration
	cmd := r.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func (m *MockRedisClient) TTL(ctx context.Context, key string) *r.DurationCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := r.NewDurationCmd(ctx, time.Second)
	if ttl, ok := m.expiry[key]; ok {
		cmd.SetVal(ttl)
	} else {
		cmd.SetVal(-1)
	}
	return cmd
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *r.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := r.NewStringCmd(ctx)
	if value, ok := m.strings[key]; ok {
		cmd.SetVal(value)
	} else if value, ok := m.data[key]; ok {
		cmd.SetVal(fmt.Sprintf("%d", value))
	} else {
		cmd.SetErr(errors.New("key not found"))
	}
	return cmd
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *r.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = fmt.Sprintf("%v", value)
	cmd := r.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *r.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			deleted++
		}
		if _, ok := m.strings[key]; ok {
			delete(m.strings, key)
			deleted++
		}
	}
	cmd := r.NewIntCmd(ctx)
	cmd.SetVal(deleted)
	return cmd
}

func (m *MockRedisClient) Ping(ctx context.Context) *r.StatusCmd {
	cmd := r.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

// Forget drops a key, simulating window expiry in rate limiter tests.
func (m *MockRedisClient) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.expiry, key)
}
