package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/dhanrekha/internal/config"
)

type testSummary struct {
	Month int
	Total float64
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testSummary{Month: 12, Total: 1520.5}
	err := cache.Set(ctx, "summary:u1:2024:12", expected, time.Minute)
	require.NoError(t, err)

	var actual testSummary
	found, err := cache.Get(ctx, "summary:u1:2024:12", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testSummary
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSetExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidatePattern(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, SummaryKey("u1", 2024, 11), 1, time.Minute))
	require.NoError(t, cache.Set(ctx, SummaryKey("u1", 2024, 12), 2, time.Minute))
	require.NoError(t, cache.Set(ctx, SummaryKey("u2", 2024, 12), 3, time.Minute))

	require.NoError(t, cache.InvalidatePattern(ctx, SummaryPattern("u1")))

	assert.False(t, mr.Exists(SummaryKey("u1", 2024, 11)))
	assert.False(t, mr.Exists(SummaryKey("u1", 2024, 12)))
	assert.True(t, mr.Exists(SummaryKey("u2", 2024, 12)))

	var out int
	found, err := cache.Get(ctx, SummaryKey("u1", 2024, 12), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidatePatternNoKeys(t *testing.T) {
	cache, _ := setupTestCache(t)

	assert.NoError(t, cache.InvalidatePattern(context.Background(), SummaryPattern("nobody")))
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	err := cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err()
	require.NoError(t, err)

	var out testSummary
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestSummaryKey(t *testing.T) {
	assert.Equal(t, "summary:abc:2024:3", SummaryKey("abc", 2024, 3))
}

func TestInitServerInvalidAddr(t *testing.T) {
	cfg := config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	}

	cache, err := InitServer(context.Background(), cfg)
	assert.Nil(t, cache)
	assert.Error(t, err)
}
