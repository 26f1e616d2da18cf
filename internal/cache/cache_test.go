package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cll-genie-server/internal/domain"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2, time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, SummaryKey("s1", "submission_1"), "text one"))
	got, ok, err := c.Get(ctx, SummaryKey("s1", "submission_1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "text one", got)

	require.NoError(t, c.Delete(ctx, SummaryKey("s1", "submission_1")))
	_, ok, _ = c.Get(ctx, SummaryKey("s1", "submission_1"))
	assert.False(t, ok)
}

func TestMemoryCache_Evicts(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2, time.Hour)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "2"))
	require.NoError(t, c.Set(ctx, "c", "3"))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(10, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "a", "1"))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNewMemoryCache_InvalidSize(t *testing.T) {
	_, err := NewMemoryCache(0, time.Minute)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tests")
	}
	ctx := context.Background()

	c, err := NewRedisCache(domain.CacheConfig{RedisURL: url, DefaultTTL: time.Minute})
	require.NoError(t, err)
	defer c.Close()

	key := SummaryKey("redis-test", "submission_1")
	require.NoError(t, c.Set(ctx, key, "sammanfattning"))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sammanfattning", got)

	require.NoError(t, c.Delete(ctx, key))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(domain.CacheConfig{RedisURL: "not-a-url"})
	assert.Error(t, err)
}
