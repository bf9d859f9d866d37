package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wenwu/saas-platform/esim-storefront/internal/config"
	"github.com/wenwu/saas-platform/esim-storefront/internal/repository"
)

// NewPool creates a connection pool from DSN and ensures schema exists
func NewPool(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return pool, nil
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// OpenKV opens the storage backend selected by STORAGE_DRIVER. The returned
// store owns its connection; Close releases it.
func OpenKV(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.KVStore, error) {
	var kv repository.KVStore

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		sqlDB, err := repository.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		sqliteKV, err := repository.NewSQLiteKV(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		kv = sqliteKV
		log.Info().Str("path", cfg.Storage.SQLitePath).Msg("[db] Using SQLite storage")

	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg.Database.DSN(), cfg.Database.Schema)
		if err != nil {
			return nil, err
		}
		pgKV := repository.NewPostgresKV(pool, cfg.Database.Schema)
		if err := pgKV.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		kv = pgKV
		log.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.DBName).
			Str("schema", cfg.Database.Schema).
			Msg("[db] Connected to PostgreSQL")

	case config.DriverRedis:
		client, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		kv = repository.NewRedisKV(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("[db] Connected to Redis")

	case config.DriverMemory:
		kv = repository.NewMemoryKV()
		log.Warn().Msg("[db] Using in-memory storage, data is lost on exit")

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	return repository.WithNamespace(kv, cfg.Storage.Namespace), nil
}
