package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/lanecalc/pkg/logger"
	"github.com/angelmondragon/lanecalc/pkg/redis"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

const (
	cacheKindProduct = "product"
	cacheKindBarcode = "barcode"
)

// Source is the uncached catalog lookup surface.
type Source interface {
	ProductByID(ctx context.Context, id string) (txn.Product, error)
	ProductByBarcode(ctx context.Context, barcode string) (txn.Product, error)
	ActivePromotions(ctx context.Context, at time.Time) ([]txn.Promotion, error)
}

// Store is the subset of the redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(kind, id string) string
}

// Cached serves product lookups from redis and falls through to the source on
// a miss. Promotions are always read from the source since their validity
// depends on the transaction date.
type Cached struct {
	source Source
	store  Store
	ttl    time.Duration
	logg   *logger.Logger
}

// NewCached wraps source with a read-through cache.
func NewCached(source Source, store Store, ttl time.Duration, logg *logger.Logger) *Cached {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Cached{source: source, store: store, ttl: ttl, logg: logg}
}

func (c *Cached) ProductByID(ctx context.Context, id string) (txn.Product, error) {
	return c.read(ctx, c.store.CacheKey(cacheKindProduct, id), func() (txn.Product, error) {
		return c.source.ProductByID(ctx, id)
	})
}

func (c *Cached) ProductByBarcode(ctx context.Context, barcode string) (txn.Product, error) {
	return c.read(ctx, c.store.CacheKey(cacheKindBarcode, barcode), func() (txn.Product, error) {
		return c.source.ProductByBarcode(ctx, barcode)
	})
}

func (c *Cached) ActivePromotions(ctx context.Context, at time.Time) ([]txn.Promotion, error) {
	return c.source.ActivePromotions(ctx, at)
}

// Invalidate drops cached entries for a product.
func (c *Cached) Invalidate(ctx context.Context, p txn.Product) error {
	keys := []string{c.store.CacheKey(cacheKindProduct, p.ID)}
	if p.Barcode != "" {
		keys = append(keys, c.store.CacheKey(cacheKindBarcode, p.Barcode))
	}
	return c.store.Del(ctx, keys...)
}

func (c *Cached) read(ctx context.Context, key string, load func() (txn.Product, error)) (txn.Product, error) {
	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var p txn.Product
		if jsonErr := json.Unmarshal([]byte(raw), &p); jsonErr == nil {
			return p, nil
		}
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "discarding undecodable catalog cache entry")
	case !errors.Is(err, redis.Nil):
		c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "catalog cache read failed: "+err.Error())
	}

	p, err := load()
	if err != nil {
		return txn.Product{}, err
	}
	if payload, err := json.Marshal(p); err == nil {
		if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), "catalog cache write failed: "+err.Error())
		}
	}
	return p, nil
}
