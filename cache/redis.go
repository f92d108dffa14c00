package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// RedisCache stores JSON values under a key prefix.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisCache(addr, prefix string) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if prefix == "" {
		prefix = "learnhub"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return NewRedisCacheFromClient(rdb, prefix), nil
}

func NewRedisCacheFromClient(rdb *goredis.Client, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get decodes the cached value into dst. A miss returns false with no error.
func (c *RedisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "redis get")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrap(err, "decode cached value")
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode cached value")
	}
	return errors.Wrap(c.rdb.Set(ctx, c.key(key), raw, ttl).Err(), "redis set")
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return errors.Wrap(c.rdb.Del(ctx, c.key(key)).Err(), "redis del")
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
