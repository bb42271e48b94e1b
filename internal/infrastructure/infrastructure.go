// Package infrastructure provides core service initialization for application
// startup. It assembles the shared dependencies (logging, database, blob
// storage, Redis, circuit breakers) that domain systems and the worker pool
// require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/pkg/database"
	"github.com/docweave/docweave/pkg/lifecycle"
	"github.com/docweave/docweave/pkg/storage"
)

// Infrastructure holds the core systems required by all modules. It provides
// a single point of initialization for lifecycle coordination, logging,
// database access, blob storage, the queue's Redis connection, and the
// shared circuit breaker registry.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Redis     *redis.Client
	Breakers  *invoker.Registry
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Worker.Redis.Addr,
		Password: cfg.Worker.Redis.Password,
		DB:       cfg.Worker.Redis.DB,
	})

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Redis:     rdb,
		Breakers:  invoker.NewRegistry(cfg.Breaker),
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.startRedis()
	return nil
}

const redisPingTimeout = 5 * time.Second

func (i *Infrastructure) startRedis() {
	logger := i.Logger.With("system", "redis")

	i.Lifecycle.OnStartup(func() {
		ctx, cancel := context.WithTimeout(i.Lifecycle.Context(), redisPingTimeout)
		defer cancel()

		if err := i.Redis.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "error", err)
			return
		}

		logger.Info("redis connection established")
	})

	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		if err := i.Redis.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	})
}
