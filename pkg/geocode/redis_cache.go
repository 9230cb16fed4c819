package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "findmyspot:geocode:"

// RedisCache shares geocode results between instances through Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the redis:// URL and pings it.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: parse redis url")
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "geocode: ping redis")
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	val, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: redis cache get")
	}
	var r Result
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, false, eris.Wrap(err, "geocode: decode cached result")
	}
	return &r, true, nil
}

// Set implements Cache. A zero ttl stores without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, r *Result, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "geocode: encode result")
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		return eris.Wrap(err, "geocode: redis cache set")
	}
	return nil
}

// Close closes the client.
func (c *RedisCache) Close() error { return c.client.Close() }
