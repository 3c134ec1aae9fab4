package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client), mr
}

func sampleCart() *CartResponse {
	return &CartResponse{
		Items: []CartItem{
			{ProductID: "p1", Name: "Widget", Price: decimal.NewFromInt(10), Quantity: 2, Selected: true, InventoryCount: 5},
		},
	}
}

func TestCache_GetMiss(t *testing.T) {
	cache, _ := setupTestCache(t)

	_, err := cache.Get(context.Background(), "user-1")

	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_SetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", sampleCart()))

	got, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, got.Items[0].Selected)
}

func TestCache_SetAppliesTTL(t *testing.T) {
	cache, mr := setupTestCache(t)

	require.NoError(t, cache.Set(context.Background(), "user-1", sampleCart()))

	ttl := mr.TTL("cart:user:user-1")
	assert.GreaterOrEqual(t, ttl, cache.baseTTL)
}

func TestCache_Invalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", sampleCart()))
	require.NoError(t, cache.Invalidate(ctx, "user-1"))

	_, err := cache.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_GetExpired(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", sampleCart()))
	mr.FastForward(cache.baseTTL * 2)

	_, err := cache.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_KeysAreScopedPerUser(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-1", sampleCart()))

	_, err := cache.Get(ctx, "user-2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
