package main

import (
	"context"
	"fmt"

	"github.com/fjod/med_store/internal/config"
	"github.com/fjod/med_store/internal/storage"
	"github.com/redis/go-redis/v9"
)

type closeFunc func(context.Context) error

func noopClose(context.Context) error { return nil }

// openBackend builds the cart snapshot backend named in cfg.
func openBackend(ctx context.Context, cfg config.StorageConfig) (storage.Storage, closeFunc, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStorage(), noopClose, nil

	case "sqlite":
		s, err := storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedisStorage(client, cfg.TTL), func(context.Context) error { return client.Close() }, nil

	case "mongo":
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		s := storage.NewMongoStorage(db)
		if err := s.CreateIndexes(ctx, cfg.TTL); err != nil {
			db.Client().Disconnect(ctx)
			return nil, nil, err
		}
		return s, func(ctx context.Context) error { return db.Client().Disconnect(ctx) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
