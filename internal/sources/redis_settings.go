package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSettings stores each key as a plain Redis string, optionally prefixed
// so several consoles can share one database.
type RedisSettings struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisSettings returns a store using rdb. prefix may be empty.
func NewRedisSettings(rdb redis.Cmdable, prefix string) *RedisSettings {
	return &RedisSettings{rdb: rdb, prefix: prefix}
}

// Get implements Settings.Get.
func (s *RedisSettings) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, true, nil
}

// Set implements Settings.Set.
func (s *RedisSettings) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
