package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink keeps the snapshot under one Redis key.
type RedisSink struct {
	rdb   *redis.Client
	key   string
	owned bool
}

// OpenRedisSink connects to redisURL and pings it.
func OpenRedisSink(ctx context.Context, redisURL, key string) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("account: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("account: redis unreachable: %w", err)
	}
	s := NewRedisSink(rdb, key)
	s.owned = true
	return s, nil
}

// NewRedisSink uses an existing client. Close leaves the client open.
func NewRedisSink(rdb *redis.Client, key string) *RedisSink {
	return &RedisSink{rdb: rdb, key: key}
}

func (r *RedisSink) Load(ctx context.Context) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: redis load: %w", err)
	}
	return data, nil
}

func (r *RedisSink) Save(ctx context.Context, data []byte) error {
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("account: redis save: %w", err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	if r.owned {
		return r.rdb.Close()
	}
	return nil
}
