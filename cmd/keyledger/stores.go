package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/keyledger/internal/app"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	"github.com/R3E-Network/keyledger/internal/app/storage/postgres"
	redisstore "github.com/R3E-Network/keyledger/internal/app/storage/redis"
	"github.com/R3E-Network/keyledger/internal/config"
	"github.com/R3E-Network/keyledger/internal/platform/migrations"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// openStores builds one store per namespace on the configured backend. The
// returned close func releases the shared connection.
func openStores(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (app.Stores, func(), error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		log.Info("using in-memory storage")
		return app.Stores{}, func() {}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return app.Stores{}, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		log.WithField("addr", cfg.Redis.Addr).Info("using redis storage")
		return app.Stores{
			Keys:    redisstore.New(client, cfg.Redis.Prefix, storage.NamespaceKeys),
			Users:   redisstore.New(client, cfg.Redis.Prefix, storage.NamespaceUsers),
			Journal: redisstore.New(client, cfg.Redis.Prefix, storage.NamespaceJournal),
		}, func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		db, err := sqlx.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return app.Stores{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return app.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.Migrate {
			if err := migrations.Apply(ctx, db); err != nil {
				_ = db.Close()
				return app.Stores{}, nil, err
			}
			log.Info("postgres schema applied")
		}
		log.Info("using postgres storage")
		return app.Stores{
			Keys:    postgres.New(db, storage.NamespaceKeys),
			Users:   postgres.New(db, storage.NamespaceUsers),
			Journal: postgres.New(db, storage.NamespaceJournal),
		}, func() { _ = db.Close() }, nil

	default:
		return app.Stores{}, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
