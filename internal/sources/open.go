package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrUnknownBackend is returned by Open for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown settings backend")

// Backend selects and locates the settings store.
type Backend struct {
	// Kind is one of "memory", "file", "redis" or "postgres".
	Kind        string
	Path        string
	RedisURL    string
	RedisPrefix string
	DatabaseURL string
}

// Open connects the configured settings store. The returned close function
// releases its connections and is never nil.
func Open(ctx context.Context, b Backend) (Settings, func(), error) {
	noop := func() {}
	switch b.Kind {
	case "", "memory":
		return NewMemorySettings(), noop, nil

	case "file":
		return NewFileSettings(b.Path), noop, nil

	case "redis":
		opt, err := redis.ParseURL(b.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisSettings(rdb, b.RedisPrefix), func() { _ = rdb.Close() }, nil

	case "postgres":
		if b.DatabaseURL == "" {
			return nil, noop, errors.New("postgres backend needs DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, b.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		s := NewPostgresSettings(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, pool.Close, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, b.Kind)
	}
}
