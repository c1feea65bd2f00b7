package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/storage"
)

const poolKeyPrefix = "dexai:pool:"

// RedisPoolCache keeps pool snapshots as JSON strings with a TTL.
type RedisPoolCache struct {
	client redis.Cmdable
}

var _ storage.PoolCache = (*RedisPoolCache)(nil)

func NewRedisPoolCache(client redis.Cmdable) (*RedisPoolCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisPoolCache{client: client}, nil
}

func (c *RedisPoolCache) GetPool(ctx context.Context, address string) (*models.PoolSnapshot, error) {
	val, err := c.client.Get(ctx, poolKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get pool: %w", err)
	}

	var snap models.PoolSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal pool: %w", err)
	}
	return &snap, nil
}

func (c *RedisPoolCache) SetPool(ctx context.Context, snap *models.PoolSnapshot, ttl time.Duration) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}
	if err := c.client.Set(ctx, poolKey(snap.Address), b, ttl).Err(); err != nil {
		return fmt.Errorf("set pool: %w", err)
	}
	return nil
}

func poolKey(address string) string {
	return poolKeyPrefix + address
}
