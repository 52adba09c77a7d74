package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebiyori/billing-service/internal/config"
)

type testStruct struct {
	Name string
	Age  int
}

func setupTestCache(t *testing.T) *Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
		Password:     "",
		DB:           0,
		User:         "",
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	return cache
}

func TestSetAndGet(t *testing.T) {
	cache := setupTestCache(t)

	expected := testStruct{Name: "Alice", Age: 30}
	err := cache.Set("user:1", expected, time.Minute)
	require.NoError(t, err)

	var actual testStruct
	found, err := cache.Get("user:1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache := setupTestCache(t)

	var out testStruct
	found, err := cache.Get("no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExistsMarker(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	exists, err := cache.Exists(ctx, "stripe:event:evt_1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, cache.Set("stripe:event:evt_1", 1, time.Hour))

	exists, err = cache.Exists(ctx, "stripe:event:evt_1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cache.Invalidate("stripe:event:evt_1"))
	exists, err = cache.Exists(ctx, "stripe:event:evt_1")
	require.NoError(t, err)
	assert.False(t, exists)
}
