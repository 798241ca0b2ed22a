package redis

import (
	"context"
	"time"

	"ai-demo-builder/internal/config"

	"github.com/go-redis/redis/v8"
)

// Client wraps the go-redis client with the small surface the queue and the
// lock need.
type Client struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) LPush(ctx context.Context, key string, value interface{}) error {
	return c.cli.LPush(ctx, key, value).Err()
}

// BRPopLPush blocks up to timeout; returns redis.Nil error when nothing arrived.
func (c *Client) BRPopLPush(ctx context.Context, src, dst string, timeout time.Duration) (string, error) {
	return c.cli.BRPopLPush(ctx, src, dst, timeout).Result()
}

func (c *Client) LRem(ctx context.Context, key string, count int64, value interface{}) (int64, error) {
	return c.cli.LRem(ctx, key, count, value).Result()
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.cli.LRange(ctx, key, start, stop).Result()
}

func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return c.cli.LLen(ctx, key).Result()
}

func (c *Client) HSet(ctx context.Context, key, field string, value interface{}) error {
	return c.cli.HSet(ctx, key, field, value).Err()
}

func (c *Client) HGet(ctx context.Context, key, field string) (string, error) {
	return c.cli.HGet(ctx, key, field).Result()
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	return c.cli.HDel(ctx, key, fields...).Err()
}

func (c *Client) Close() error { return c.cli.Close() }
