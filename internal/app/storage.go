package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront-kart/internal/kv"
	"github.com/xenking/storefront-kart/internal/storage/file"
	"github.com/xenking/storefront-kart/internal/storage/postgres"
	"github.com/xenking/storefront-kart/internal/storage/redis"
)

// Backend is an opened key-value store.
type Backend interface {
	kv.Store
	kv.Pinger
}

// OpenStorage connects the configured backend. The returned function
// releases its connections.
func OpenStorage(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (Backend, func(), error) {
	lg = lg.With(zap.String("backend", cfg.Backend))
	switch cfg.Backend {
	case BackendMemory:
		lg.Warn("Memory backend keeps no state across restarts")
		return kv.NewMemory(int(cfg.Quota)), func() {}, nil

	case BackendFile:
		s, err := file.New(cfg.Dir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open file storage")
		}
		lg.Info("Storage opened", zap.String("dir", cfg.Dir))
		return s, func() {}, nil

	case BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		lg.Info("Storage opened", zap.Int("db", cfg.RedisDB))
		return redis.New(client), func() {
			if err := client.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		}, nil

	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		var opts []postgres.Option
		if cfg.Quota > 0 {
			opts = append(opts, postgres.WithQuota(cfg.Quota))
		}
		lg.Info("Storage opened")
		return postgres.New(pool, opts...), pool.Close, nil

	default:
		return nil, nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
