package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/order-events-service/internal/domain"
)

// RedisItemCache — общий для реплик кэш товаров в Redis.
type RedisItemCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisItemCache(client *redis.Client, serviceName string, ttl time.Duration) *RedisItemCache {
	return &RedisItemCache{client: client, prefix: serviceName, ttl: ttl}
}

// GenerateKey — ключ товара вида <service>:catalog:<id>.
func (c *RedisItemCache) GenerateKey(id string) string {
	return fmt.Sprintf("%s:catalog:%s", c.prefix, id)
}

func (c *RedisItemCache) GetMany(ctx context.Context, ids []string) (map[string]domain.CatalogItem, error) {
	out := make(map[string]domain.CatalogItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.GenerateKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var it domain.CatalogItem
		if err := json.Unmarshal([]byte(s), &it); err != nil {
			continue
		}
		out[ids[i]] = it
	}
	return out, nil
}

func (c *RedisItemCache) SetMany(ctx context.Context, items []domain.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, it := range items {
			raw, err := json.Marshal(it)
			if err != nil {
				return err
			}
			p.Set(ctx, c.GenerateKey(it.ID), raw, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set catalog items: %w", err)
	}
	return nil
}

var _ ItemCache = (*RedisItemCache)(nil)
