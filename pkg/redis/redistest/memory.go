// Package redistest provides an in-memory stand-in for the redis commands used
// by pkg/redis.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	redispkg "github.com/sokohub/sokohub-backend/pkg/redis"
)

// Memory implements redispkg.Cmdable. TTLs are recorded but never expire.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

var _ redispkg.Cmdable = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

// NewClient returns a pkg/redis Client backed by a fresh Memory store.
func NewClient() (*redispkg.Client, *Memory) {
	mem := NewMemory()
	return redispkg.Wrap(mem), mem
}

// TTL returns the last ttl recorded for key.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// Has reports whether key is present.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *Memory) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *Memory) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *Memory) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *Memory) Incr(_ context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if raw, ok := m.data[key]; ok {
		if _, err := fmt.Sscan(raw, &current); err != nil {
			return redis.NewIntResult(0, err)
		}
	}
	current++
	m.data[key] = fmt.Sprint(current)
	return redis.NewIntResult(current, nil)
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *Memory) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			removed++
		}
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return redis.NewIntResult(removed, nil)
}
