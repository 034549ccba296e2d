package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "novacontent:quota:"
	// Counters outlive their day so late readers still see the final count.
	counterTTL = 48 * time.Hour
)

var _ Counter = (*RedisCounter)(nil)

type RedisCounter struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisCounter(ctx context.Context, addr string) (*RedisCounter, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCounter{rdb: rdb, prefix: defaultKeyPrefix}, nil
}

func (c *RedisCounter) key(day string) string {
	return c.prefix + day
}

func (c *RedisCounter) QuotaCount(ctx context.Context, day string) (int64, error) {
	n, err := c.rdb.Get(ctx, c.key(day)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

// IncrementQuota uses INCR, which creates the key at 1 when absent.
func (c *RedisCounter) IncrementQuota(ctx context.Context, day string) (int64, error) {
	key := c.key(day)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return incr.Val(), nil
}

func (c *RedisCounter) Close() error {
	return c.rdb.Close()
}
