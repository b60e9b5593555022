package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client and carries the key prefix every broadcast
// component namespaces its keys and channels with.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient creates a Redis client from a URL (e.g., "redis://localhost:6379").
// prefix namespaces all keys and Pub/Sub channels; empty means no namespace.
func NewClient(redisURL, prefix string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Ping verifies the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw go-redis client for advanced operations.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

// key applies the client's namespace to a key or channel name.
func (c *Client) key(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + name
}
