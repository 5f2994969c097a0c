// Package app wires the engine's dependencies for the server and scheduler binaries.
package app

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/credit-engine/internal/cache"
	"github.com/segyhp/credit-engine/internal/config"
	"github.com/segyhp/credit-engine/internal/repository"
	"github.com/segyhp/credit-engine/internal/service"
)

type App struct {
	DB        *sqlx.DB
	Redis     *redis.Client
	Store     repository.Store
	Snapshots cache.SnapshotCache
	Service   *service.LoanService
}

// New connects to the database and, when enabled, redis.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := initDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &App{DB: db, Snapshots: cache.Nop{}}
	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// the engine runs without the cache; readiness reports it
			log.WithError(err).Warn("redis unreachable at startup")
		}
		a.Snapshots = cache.NewRedisCache(a.Redis, cfg.Redis.KeyPrefix, cfg.Redis.SnapshotTTL)
	}

	a.Store = repository.NewPostgresStore(db, cfg.Database.TxRetries, log)
	a.Service = service.NewLoanService(a.Store, a.Snapshots, log, service.OptionsFrom(cfg))
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.DB.Close()
}

func initDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}
