package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/contract-forge/internal/config"
	"github.com/yourusername/contract-forge/internal/jobs"
)

// OpenStore は STORE_BACKEND に応じたジョブストアに接続します。
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (jobs.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMongo:
		store, err := jobs.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info("using mongo job store", zap.String("database", cfg.MongoDatabase))
		return store, nil

	case config.StoreRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w: %w", jobs.ErrStorageUnavailable, err)
		}
		logger.Info("using redis job store", zap.Duration("ttl", cfg.RecordTTL()))
		return jobs.NewRedisStore(rdb, cfg.RecordTTL()), nil

	case config.StorePostgres:
		store, err := jobs.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres job store")
		return store, nil

	case config.StoreMemory:
		logger.Warn("using in-memory job store; records are lost on restart")
		return jobs.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND: %q", cfg.StoreBackend)
}
