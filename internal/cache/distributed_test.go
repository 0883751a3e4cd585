//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/chinmina/ebay-oauth-bridge/internal/testhelpers"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) rueidis.Client {
	t.Helper()

	cfg := testhelpers.RunRedisContainer(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.Redis.Address},
		Password:    cfg.Redis.Password,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func TestIntegrationDistributed_SetAndGet(t *testing.T) {
	client := setupRedis(t)

	cache, err := NewDistributed[CacheTestDummy](client, 5*time.Minute, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	key := "test-key"

	expected := CacheTestDummy{
		Data: "test-value",
	}

	err = cache.Set(ctx, key, expected)
	require.NoError(t, err)

	assert.EventuallyWithT(t, func(collect *assert.CollectT) {
		result, found, err := cache.Get(ctx, key)
		require.NoError(collect, err)
		assert.True(collect, found)
		assert.Equal(collect, expected, result)
	}, time.Second*2, time.Millisecond*100, "cache entry should be eventually available")
}

func TestIntegrationDistributed_GetNotFound(t *testing.T) {
	client := setupRedis(t)

	cache, err := NewDistributed[CacheTestDummy](client, 5*time.Minute, "test:")
	require.NoError(t, err)

	result, found, err := cache.Get(context.Background(), "nonexistent-key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, CacheTestDummy{}, result)
}

func TestIntegrationDistributed_Invalidate(t *testing.T) {
	client := setupRedis(t)

	cache, err := NewDistributed[CacheTestDummy](client, 5*time.Minute, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	key := "test-key"

	err = cache.Set(ctx, key, CacheTestDummy{Data: "test-value"})
	require.NoError(t, err)
	assertEventuallyExists(t, cache, key)

	err = cache.Invalidate(ctx, key)
	require.NoError(t, err)

	// Verify it's gone by polling (as invalidate may be eventually consistent)
	assert.EventuallyWithT(t, func(collect *assert.CollectT) {
		_, found, err := cache.Get(ctx, key)
		require.NoError(collect, err)
		assert.False(collect, found)
	}, time.Second*2, time.Millisecond*50, "cache entry should be eventually invalidated")
}

func TestIntegrationDistributed_TTL(t *testing.T) {
	client := setupRedis(t)

	cache, err := NewDistributed[CacheTestDummy](client, 1*time.Second, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	key := "test-key"

	err = cache.Set(ctx, key, CacheTestDummy{Data: "test-value"})
	require.NoError(t, err)
	assertEventuallyExists(t, cache, key)

	assert.EventuallyWithT(t, func(collect *assert.CollectT) {
		_, found, err := cache.Get(ctx, key)
		require.NoError(collect, err)
		assert.False(collect, found)
	}, time.Second*3, time.Millisecond*100, "cache entry should expire after TTL")
}

func TestIntegrationDistributed_PrefixIsolation(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	first, err := NewDistributed[CacheTestDummy](client, 5*time.Minute, "first:")
	require.NoError(t, err)
	second, err := NewDistributed[CacheTestDummy](client, 5*time.Minute, "second:")
	require.NoError(t, err)

	require.NoError(t, first.Set(ctx, "shared", CacheTestDummy{Data: "first"}))
	assertEventuallyExists(t, first, "shared")

	_, found, err := second.Get(ctx, "shared")
	require.NoError(t, err)
	assert.False(t, found)
}

func assertEventuallyExists(t *testing.T, cache TokenCache[CacheTestDummy], key string) {
	t.Helper()

	assert.EventuallyWithT(t, func(collect *assert.CollectT) {
		_, found, err := cache.Get(context.Background(), key)
		require.NoError(collect, err)
		assert.True(collect, found)
	}, time.Second*2, time.Millisecond*100, "cache entry should be eventually available")
}
