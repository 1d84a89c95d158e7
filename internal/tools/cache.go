package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores tool results by key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache is a Cache backed by a Redis server.
type RedisCache struct {
	Client *redis.Client
	Prefix string
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisCache{Client: client, Prefix: "seeker:tool:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.Client.Get(ctx, c.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Client.Set(ctx, c.Prefix+key, value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// CachedTool serves repeated calls with identical input from a Cache.
// Cache errors are logged and the wrapped tool is called as if nothing was cached.
type CachedTool struct {
	Tool
	Cache Cache
	TTL   time.Duration
}

func Cached(t Tool, cache Cache, ttl time.Duration) Tool {
	if cache == nil {
		return t
	}
	return &CachedTool{Tool: t, Cache: cache, TTL: ttl}
}

func (c *CachedTool) Execute(ctx context.Context, input string) (string, error) {
	key := CacheKey(c.Name(), input)
	if val, ok, err := c.Cache.Get(ctx, key); err != nil {
		log.Printf("[Cache] get %s failed: %v", c.Name(), err)
	} else if ok {
		return val, nil
	}

	res, err := c.Tool.Execute(ctx, input)
	if err != nil {
		return "", err
	}
	if err := c.Cache.Set(ctx, key, res, c.TTL); err != nil {
		log.Printf("[Cache] set %s failed: %v", c.Name(), err)
	}
	return res, nil
}

// CacheKey derives a stable key from the tool name and its raw input.
func CacheKey(tool, input string) string {
	sum := sha256.Sum256([]byte(tool + "\x00" + input))
	return tool + ":" + hex.EncodeToString(sum[:])
}
