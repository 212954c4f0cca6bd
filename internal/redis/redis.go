package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Network  string `yaml:"network"` // "tcp" or "unix" for socket path
}

// Client wraps go-redis with the small surface the monitor needs: plain
// key/value with TTL for shared lookup caching and INCR-based dedupe
// counters so duplicate alerts are suppressed across restarts.
type Client struct {
	client *redis.Client
	log    *zap.Logger
}

var ctx = context.Background()

func New(cfg Config, log *zap.Logger) (*Client, error) {
	network := "tcp"
	if cfg.Network != "" {
		network = cfg.Network
	}
	// An addr that looks like a socket path means unix.
	if len(cfg.Addr) > 0 && cfg.Addr[0] == '/' {
		network = "unix"
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Network:      network,
		PoolSize:     20,
		MinIdleConns: 4,
		MaxRetries:   3,
		PoolTimeout:  4 * time.Second,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("redis connected", zap.String("network", network), zap.String("addr", cfg.Addr))

	return &Client{client: rdb, log: log}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping() error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Set(key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Client) Get(key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *Client) Del(key string) error {
	return c.client.Del(ctx, key).Err()
}

// SeenRecently marks key and reports whether it was already marked within
// the window. Used to dedupe alert-worthy events the gateway replays.
func (c *Client) SeenRecently(key string, window time.Duration) (bool, error) {
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n > 1, nil
}
