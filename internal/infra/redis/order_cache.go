// Package redis holds the read-through cache for order detail views.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain"
)

// Client is the subset of *goredis.Client the cache needs.
type Client interface {
	MGet(ctx context.Context, keys ...string) *goredis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

var _ Client = (*goredis.Client)(nil)

// entry is the cached value. Gen is the order's generation when the load
// started; an entry whose Gen no longer matches is never served.
type entry struct {
	Gen   int64         `json:"gen"`
	Order *domain.Order `json:"order"`
}

type OrderCache struct {
	client Client
	ttl    time.Duration
	group  singleflight.Group
	log    *slog.Logger
}

func NewOrderCache(client Client, ttl time.Duration) *OrderCache {
	return &OrderCache{
		client: client,
		ttl:    ttl,
		log:    slog.Default().With("component", "order-cache"),
	}
}

// Both keys share a hash tag so MGet stays on one cluster slot.
func orderKey(id uint64) string {
	return fmt.Sprintf("order:{%d}", id)
}

func genKey(id uint64) string {
	return fmt.Sprintf("order:{%d}:gen", id)
}

// GetOrLoad serves the order from redis, falling back to load on a miss.
// Concurrent misses for one order share a single load. Redis failures
// degrade to calling load directly; a nil order from load is not cached.
func (c *OrderCache) GetOrLoad(ctx context.Context, id uint64, load func(context.Context) (*domain.Order, error)) (*domain.Order, error) {
	key := orderKey(id)

	gen, cached, ok := c.read(ctx, id)
	if cached != nil {
		return cached, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(id, 10), func() (any, error) {
		o, err := load(ctx)
		if err != nil || o == nil || !ok {
			return o, err
		}
		if data, mErr := json.Marshal(entry{Gen: gen, Order: o}); mErr == nil {
			if sErr := c.client.Set(ctx, key, data, c.ttl).Err(); sErr != nil {
				c.log.Warn("cache write failed", "key", key, "error", sErr)
			}
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	o, _ := v.(*domain.Order)
	return o, nil
}

// read returns the current generation and the cached order when the entry is
// present and current. ok is false when redis could not be read, in which
// case nothing should be written back.
func (c *OrderCache) read(ctx context.Context, id uint64) (gen int64, order *domain.Order, ok bool) {
	key := orderKey(id)
	vals, err := c.client.MGet(ctx, key, genKey(id)).Result()
	if err != nil || len(vals) != 2 {
		c.log.Warn("cache read failed", "key", key, "error", err)
		return 0, nil, false
	}

	if s, isStr := vals[1].(string); isStr {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			c.log.Warn("bad cache generation", "key", genKey(id), "value", s)
			return 0, nil, false
		}
	}

	raw, isStr := vals[0].(string)
	if !isStr {
		return gen, nil, true
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Order == nil {
		c.log.Warn("dropping undecodable cache entry", "key", key)
		return gen, nil, true
	}
	if e.Gen != gen {
		return gen, nil, true
	}
	return gen, e.Order, true
}

// Invalidate bumps the order's generation before deleting the entry, so a
// load that started earlier cannot put back a value that will be served.
func (c *OrderCache) Invalidate(ctx context.Context, id uint64) {
	gk := genKey(id)
	if err := c.client.Incr(ctx, gk).Err(); err != nil {
		c.log.Warn("cache generation bump failed", "key", gk, "error", err)
	} else if err := c.client.Expire(ctx, gk, c.ttl+time.Hour).Err(); err != nil {
		c.log.Warn("cache generation expiry failed", "key", gk, "error", err)
	}
	if err := c.client.Del(ctx, orderKey(id)).Err(); err != nil {
		c.log.Warn("cache invalidation failed", "key", orderKey(id), "error", err)
	}
}
