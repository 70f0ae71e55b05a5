package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or caching is off.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a JSON cache in front of redis. A nil *Cache, or one built without
// a reachable server, turns every call into a no-op miss.
type Cache struct {
	client *redis.Client
}

// NewCache connects to redis at addr. An empty addr disables caching; an
// unreachable server is logged and also disables caching.
func NewCache(ctx context.Context, addr, password string) *Cache {
	if addr == "" {
		logger.Info().Msg("REDIS_ADDR not set, caching disabled")
		return &Cache{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("Failed to connect to Redis, caching disabled")
		_ = client.Close()
		return &Cache{}
	}

	logger.Info().Str("addr", addr).Msg("Connected to Redis successfully")
	return &Cache{client: client}
}

// NewCacheWithClient wraps an existing client.
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Enabled reports whether a redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if !c.Enabled() {
		return ErrCacheMiss
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// Invalidate deletes every key matching pattern.
func (c *Cache) Invalidate(ctx context.Context, pattern string) error {
	if !c.Enabled() {
		return nil
	}
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
