package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cart not in cache")

// Cache is a cache-aside layer over the cart store. Mutations invalidate;
// reads populate. TTLs are jittered so a burst of carts does not expire at
// the same instant.
type Cache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (r *Cache) Get(ctx context.Context, userID string) (*CartResponse, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var resp CartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &resp, nil
}

func (r *Cache) Set(ctx context.Context, userID string, resp *CartResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	// Jitter up to 10% of the base TTL.
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL) / 10))
	if err := r.client.Set(ctx, cacheKey(userID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:user:" + userID
}
