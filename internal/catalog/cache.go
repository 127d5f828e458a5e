package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/MikeMC777/tienda-ecom/internal/cache"
)

// Cached decorates a Repository with a redis read-through cache on List.
// Writes pass through and invalidate the listing keys. Cache failures are
// logged and never surfaced to callers.
type Cached struct {
	Repository
	cache *cache.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCached(repo Repository, c *cache.Cache, ttl time.Duration, log zerolog.Logger) *Cached {
	return &Cached{Repository: repo, cache: c, ttl: ttl, log: log}
}

func listKey(q Query) string {
	return fmt.Sprintf("list:q=%s:status=%s:limit=%d:offset=%d", q.Q, q.Status, q.Limit, q.Offset)
}

func (c *Cached) List(ctx context.Context, q Query) ([]Product, error) {
	key := listKey(q)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var out []Product
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}
	} else if err != cache.ErrMiss {
		c.log.Warn().Err(err).Msg("catalog cache read failed")
	}

	out, err := c.Repository.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(out); err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return out, nil
}

func (c *Cached) invalidate(ctx context.Context) {
	if err := c.cache.DeletePattern(ctx, "list:*"); err != nil {
		c.log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (c *Cached) Create(ctx context.Context, p *Product) error {
	if err := c.Repository.Create(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cached) Update(ctx context.Context, p *Product) error {
	if err := c.Repository.Update(ctx, p); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cached) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.Repository.Delete(ctx, id)
	if err == nil && ok {
		c.invalidate(ctx)
	}
	return ok, err
}
