package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scopeA Scope = "a"
	scopeB Scope = "b"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, scopeA, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, scopeA, 1, "22"))
	require.NoError(t, s.Put(ctx, scopeB, 1, "other"))

	v, ok, err := s.Get(ctx, scopeA, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "22", v)

	require.NoError(t, s.Put(ctx, scopeA, 1, "23"))
	v, ok, err = s.Take(ctx, scopeA, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "23", v)

	_, ok, err = s.Take(ctx, scopeA, 1)
	require.NoError(t, err)
	assert.False(t, ok, "take consumes the entry")

	v, ok, err = s.Get(ctx, scopeB, 1)
	require.NoError(t, err)
	assert.True(t, ok, "scopes are independent")
	assert.Equal(t, "other", v)

	require.NoError(t, s.Delete(ctx, scopeB, 1))
	_, ok, err = s.Get(ctx, scopeB, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, scopeB, 42), "delete of a missing entry is not an error")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(nil))
}

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory(TTLs{scopeA: time.Minute})
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, scopeA, 7, "x"))
	require.NoError(t, m.Put(ctx, scopeB, 7, "y"))

	now = now.Add(59 * time.Second)
	_, ok, _ := m.Get(ctx, scopeA, 7)
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Take(ctx, scopeA, 7)
	assert.False(t, ok, "entry expires at its deadline")

	_, ok, _ = m.Get(ctx, scopeB, 7)
	assert.True(t, ok, "scope without ttl never expires")
	assert.Equal(t, 1, m.Len())
}

func TestConfigNormalize(t *testing.T) {
	var c Config
	require.NoError(t, c.Normalize())
	assert.Equal(t, BackendMemory, c.Backend)
	assert.Equal(t, "membergate:session", c.KeyPrefix)

	c = Config{Backend: "Redis"}
	assert.Error(t, c.Normalize(), "redis requires an address")

	c = Config{Backend: "redis", RedisAddr: "localhost:6379"}
	require.NoError(t, c.Normalize())

	c = Config{Backend: "etcd"}
	assert.Error(t, c.Normalize())
}

// Runs against a live server only when MEMBERGATE_TEST_REDIS holds its address.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MEMBERGATE_TEST_REDIS")
	if addr == "" {
		t.Skip("MEMBERGATE_TEST_REDIS not set")
	}
	ctx := context.Background()
	cfg := Config{Backend: BackendRedis, RedisAddr: addr, KeyPrefix: "membergate-test:" + t.Name()}
	r, err := OpenRedis(ctx, cfg, TTLs{scopeA: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	exerciseStore(t, r)

	require.NoError(t, r.Put(ctx, scopeA, 9, "v"))
	ttl, err := r.client.TTL(ctx, r.key(scopeA, 9)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	require.NoError(t, r.Delete(ctx, scopeA, 9))
}

func TestRedisResultMapping(t *testing.T) {
	v, ok, err := result("", redis.Nil, "get")
	assert.Equal(t, "", v)
	assert.False(t, ok)
	assert.NoError(t, err)

	_, _, err = result("", assert.AnError, "take")
	assert.ErrorIs(t, err, assert.AnError)
}
