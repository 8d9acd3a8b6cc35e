// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-notifier/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client with the stream operations used by the
// change feed.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}, nil
}

// NewRedisFromClient wraps an existing client (tests, miniredis).
func NewRedisFromClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// EnsureGroup creates the consumer group (and the stream) if missing. The
// group starts at "0" so entries written before the first deploy are seen.
func (c *RedisClient) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.Client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// ReadGroup reads up to count entries for consumer. id is ">" for new entries
// or "0" to replay this consumer's pending ones. block <= 0 returns at once.
// A timeout with no entries returns an empty slice and no error.
func (c *RedisClient) ReadGroup(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]redis.XMessage, error) {
	if block <= 0 {
		block = -1
	}
	res, err := c.Client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []redis.XMessage
	for _, s := range res {
		out = append(out, s.Messages...)
	}
	return out, nil
}

// Ack acknowledges processed entries.
func (c *RedisClient) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return c.Client.XAck(ctx, stream, group, ids...).Err()
}

// Append writes one entry to a stream and returns its id.
func (c *RedisClient) Append(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	return c.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
}
