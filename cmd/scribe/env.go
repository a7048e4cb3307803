package main

import (
	"context"
	"database/sql"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/hpungsan/scribe/internal/config"
	"github.com/hpungsan/scribe/internal/db"
	"github.com/hpungsan/scribe/internal/docstore"
	"github.com/hpungsan/scribe/internal/errors"
	"github.com/hpungsan/scribe/internal/identity"
	"github.com/hpungsan/scribe/internal/logger"
	"github.com/hpungsan/scribe/internal/ops"
	"github.com/hpungsan/scribe/internal/redisstore"
)

// appEnv holds what commands share. The store is opened on first use so
// commands like `token` and `--help` never touch it.
type appEnv struct {
	baseDir string
	cfg     *config.Config
	log     logger.Logger

	mu     sync.Mutex
	store  docstore.Store
	sqlDB  *sql.DB
	client *redis.Client
}

// Store returns the configured document store, opening it if needed.
func (e *appEnv) Store(ctx context.Context) (docstore.Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store != nil {
		return e.store, nil
	}

	switch e.cfg.Store {
	case config.StoreRedis:
		opts := redisstore.DefaultConnectOptions(e.cfg.RedisAddr, e.cfg.RedisPassword, e.cfg.RedisDB)
		client, err := redisstore.Connect(ctx, opts, e.log)
		if err != nil {
			return nil, errors.NewUnavailable(err)
		}
		e.client = client
		e.store = redisstore.New(client)
	default:
		database, err := db.Init(e.baseDir)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		db.ConfigurePool(database, e.cfg)
		e.sqlDB = database
		e.store = db.NewStore(database)
	}

	e.log.Debug("store opened", logger.String("backend", e.cfg.Store))
	return e.store, nil
}

// Deps returns ops dependencies acting as the configured user.
func (e *appEnv) Deps(ctx context.Context) (ops.Deps, error) {
	store, err := e.Store(ctx)
	if err != nil {
		return ops.Deps{}, err
	}
	return ops.Deps{
		Store:    store,
		Identity: identity.Static(e.cfg.UserID),
		Config:   e.cfg,
		Logger:   e.log,
	}, nil
}

// Close releases whatever Store opened. Safe to call more than once.
func (e *appEnv) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sqlDB != nil {
		_ = e.sqlDB.Close()
		e.sqlDB = nil
	}
	if e.client != nil {
		_ = e.client.Close()
		e.client = nil
	}
}
