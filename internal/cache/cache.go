// Package cache is a thin prefix-scoped wrapper over redis, used as a
// read-through cache in front of catalog listings. Checkout paths never
// read it.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

type Cache struct {
	client *redis.Client
	prefix string
}

func New(addr, prefix string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (c *Cache) key(k string) string { return c.prefix + ":" + k }

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Get(ctx context.Context, k string) (string, error) {
	v, err := c.client.Get(ctx, c.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (c *Cache) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(k), v, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, k string) error {
	return c.client.Del(ctx, c.key(k)).Err()
}

// DeletePattern removes every key under the cache prefix matching pattern.
// SCAN keeps this safe against large keyspaces.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(pattern), 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
