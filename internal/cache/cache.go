package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/cocogogo0101-tech/CueBot/internal/redis"
)

// Cache is a two-layer lookup cache for data the monitor fetches from the
// Discord REST API: audit-log attributions, member snapshots, guild role
// lists. L1 is in-process ristretto, L2 an optional Redis. Fetches for a
// missing key collapse through singleflight so a burst of events for the
// same actor costs one REST call.
type Cache struct {
	l1           *ristretto.Cache
	l2           *redis.Client
	singleflight singleflight.Group

	l1Hits   atomic.Uint64
	l1Misses atomic.Uint64
	l2Hits   atomic.Uint64
	l2Misses atomic.Uint64
}

type Config struct {
	L1MaxCost     int64
	L1NumCounters int64
	DefaultTTL    time.Duration
}

func New(l2 *redis.Client, cfg Config) (*Cache, error) {
	if cfg.L1MaxCost == 0 {
		cfg.L1MaxCost = 4 << 20
	}
	if cfg.L1NumCounters == 0 {
		cfg.L1NumCounters = 10000
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 2 * time.Minute
	}

	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.L1NumCounters,
		MaxCost:     cfg.L1MaxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &Cache{
		l1: l1,
		l2: l2,
	}, nil
}

// GetString returns the cached string for key, falling back L1 -> L2 ->
// fetch. The fetched value is written back to both layers.
func (c *Cache) GetString(ctx context.Context, key string, ttl time.Duration, fetch func() (string, error)) (string, error) {
	if val, found := c.l1.Get(key); found {
		c.l1Hits.Add(1)
		if s, ok := val.(string); ok {
			return s, nil
		}
	}
	c.l1Misses.Add(1)

	if c.l2 != nil {
		if val, err := c.l2.Get(key); err == nil && val != "" {
			c.l2Hits.Add(1)
			c.l1.SetWithTTL(key, val, 1, ttl)
			return val, nil
		}
		c.l2Misses.Add(1)
	}

	val, err, _ := c.singleflight.Do(key, func() (interface{}, error) {
		return fetch()
	})
	if err != nil {
		return "", err
	}

	s := val.(string)
	c.Set(key, s, ttl)
	return s, nil
}

// Set stores a value in both layers.
func (c *Cache) Set(key string, value string, ttl time.Duration) {
	c.l1.SetWithTTL(key, value, 1, ttl)
	if c.l2 != nil {
		c.l2.Set(key, value, ttl)
	}
}

// Delete removes a key from both layers.
func (c *Cache) Delete(key string) {
	c.l1.Del(key)
	if c.l2 != nil {
		c.l2.Del(key)
	}
}

// Stats reports hit/miss counters per layer.
type Stats struct {
	L1Hits   uint64
	L1Misses uint64
	L2Hits   uint64
	L2Misses uint64
}

func (c *Cache) Stats() Stats {
	return Stats{
		L1Hits:   c.l1Hits.Load(),
		L1Misses: c.l1Misses.Load(),
		L2Hits:   c.l2Hits.Load(),
		L2Misses: c.l2Misses.Load(),
	}
}

func (c *Cache) Close() {
	c.l1.Close()
}
