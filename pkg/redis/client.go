// Package redis is the lane's short lived state: idempotency records, held
// transactions and the catalog read-through cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/lanecalc/pkg/config"
	"github.com/angelmondragon/lanecalc/pkg/logger"
)

// Nil is returned by Get when the key does not exist.
var Nil = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

// Key families under the lc: namespace.
const (
	namespace         = "lc"
	idempotencyFamily = "idempotency"
	holdFamily        = "hold"
	cacheFamily       = "cache"
)

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what pkg/idempotency needs from redis.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Client wraps a go-redis client. The zero value reports errNotInitialized
// from every call instead of panicking.
type Client struct {
	rdb redis.UniversalClient
}

// New connects using cfg and pings the server once.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{rdb: redis.NewClient(opts)}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"redis_addr": opts.Addr, "redis_db": opts.DB}), "redis connection established")
	}
	return c, nil
}

// NewFromAddr connects to addr with go-redis defaults. Used by tools and tests.
func NewFromAddr(addr string) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// optionsFromConfig prefers REDIS_URL. Pool and timeout settings fill only
// what the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	default:
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.DB, cfg.DB)
	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func (c *Client) conn() (redis.UniversalClient, error) {
	if c == nil || c.rdb == nil {
		return nil, errNotInitialized
	}
	return c.rdb, nil
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

// Close releases the connection pool. Closing a zero Client is a no-op.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Set stores value at key. A zero ttl never expires.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns the value at key, or Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	rdb, err := c.conn()
	if err != nil {
		return "", err
	}
	return rdb.Get(ctx, key).Result()
}

// SetNX stores value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	rdb, err := c.conn()
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, value, ttl).Result()
}

// Del removes keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Del(ctx, keys...).Err()
}

// PutIndexed stores value at key and adds member to the set at index in one
// MULTI block. Both keys get ttl when it is positive.
func (c *Client) PutIndexed(ctx context.Context, key string, value any, index, member string, ttl time.Duration) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	_, err = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, ttl)
		p.SAdd(ctx, index, member)
		if ttl > 0 {
			p.Expire(ctx, index, ttl)
		}
		return nil
	})
	return err
}

// DeleteIndexed removes key and its member of the set at index in one MULTI
// block. An empty key only unindexes member.
func (c *Client) DeleteIndexed(ctx context.Context, key, index, member string) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	_, err = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if key != "" {
			p.Del(ctx, key)
		}
		p.SRem(ctx, index, member)
		return nil
	})
	return err
}

// Members lists the set at index.
func (c *Client) Members(ctx context.Context, index string) ([]string, error) {
	rdb, err := c.conn()
	if err != nil {
		return nil, err
	}
	return rdb.SMembers(ctx, index).Result()
}

// IdempotencyKey is lc:idempotency:<scope>:<id>.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyFamily, scope, id)
}

// HoldKey is lc:hold:<lane>:<transaction>.
func (c *Client) HoldKey(laneID, transactionID string) string {
	return joinKey(holdFamily, laneID, transactionID)
}

// HoldIndexKey is the set of transactions held on a lane.
func (c *Client) HoldIndexKey(laneID string) string {
	return joinKey(holdFamily, laneID, "index")
}

// CacheKey is lc:cache:<kind>:<id>.
func (c *Client) CacheKey(kind, id string) string {
	return joinKey(cacheFamily, kind, id)
}

// joinKey trims parts and skips blank ones.
func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
