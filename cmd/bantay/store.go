package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/adapters/memory"
	pgxadapter "github.com/lborres/bantay/adapters/pgx"
	redisadapter "github.com/lborres/bantay/adapters/redis"
	sqliteadapter "github.com/lborres/bantay/adapters/sqlite"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/internal/config"
)

// openStore connects the adapter named by cfg.Store. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.AppConfig) (core.Adapter, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), func() {}, nil

	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the %s store", cfg.Store)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		return pgxadapter.New(pool), pool.Close, nil

	case config.StoreSQLite:
		db, err := sqliteadapter.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqliteadapter.New(db), func() { db.Close() }, nil

	case config.StoreRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisadapter.New(client), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown BANTAY_STORE %q", cfg.Store)
	}
}
