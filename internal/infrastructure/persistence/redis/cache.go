// Package redis implements the Redis acceleration layer for the mentor
// vetting pipeline. Redis is never authoritative here: it only shortcuts
// token-to-session resolution, and every miss or error falls through to
// PostgreSQL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig targets a local unauthenticated instance.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr renders host:port for the client.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var (
	// ErrCacheMiss marks an absent key.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection wraps a failed initial connection.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheKeyEmpty rejects empty keys before they hit Redis.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// PrefixToken namespaces the token-to-session-id entries.
const PrefixToken = "vetting:token:"

// Cache wraps the Redis client. Construction fails fast when the server
// is unreachable so the caller can decide to run without the cache.
type Cache struct {
	client *redis.Client
}

// NewCache connects and verifies the server with a ping bounded by the
// dial timeout.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{client: client}, nil
}

// Close releases the client's connections.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks reachability for the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetString stores value under key for ttl.
func (c *Cache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// GetString reads key, mapping an absent key to ErrCacheMiss.
func (c *Cache) GetString(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrCacheKeyEmpty
	}

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Delete removes keys; deleting nothing is not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
