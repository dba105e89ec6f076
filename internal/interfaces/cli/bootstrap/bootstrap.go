// Package bootstrap assembles the full engine stack shared by every CLI
// command: config, logger, database, redis, provider client, and the
// application services on top of them.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appsim "github.com/simflux/simflux/internal/application/sim"
	"github.com/simflux/simflux/internal/infrastructure/cache"
	"github.com/simflux/simflux/internal/infrastructure/config"
	"github.com/simflux/simflux/internal/infrastructure/database"
	"github.com/simflux/simflux/internal/infrastructure/nce"
	"github.com/simflux/simflux/internal/infrastructure/repository"
	"github.com/simflux/simflux/internal/shared/biztime"
	"github.com/simflux/simflux/internal/shared/db"
	"github.com/simflux/simflux/internal/shared/logger"
)

// App holds the wired engine components.
type App struct {
	Config *config.Config
	Logger logger.Interface
	Redis  *redis.Client

	Provider   *nce.Client
	Reconciler *appsim.Reconciler
	Executor   *appsim.CommandExecutor
	Queries    *appsim.QueryService
	Trigger    *appsim.SyncTrigger

	InventoryJob *appsim.InventorySyncJob
	UsageJob     *appsim.UsageSyncJob
	QuotaJob     *appsim.QuotaCheckJob
	CleanupJob   *appsim.CleanupJob
}

// Build wires the stack. The returned cleanup function closes the database
// and redis connections.
func Build() (*App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	biztime.MustInit(biztime.DefaultTimezone)

	if err := database.Init(&cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		_ = database.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.GetAddr(), err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			log.Errorw("failed to close redis client", "error", err)
		}
		if err := database.Close(); err != nil {
			log.Errorw("failed to close database", "error", err)
		}
		_ = logger.Sync()
	}

	gdb := database.Get()
	sims := repository.NewSimRepository(gdb, log)
	usage := repository.NewUsageRepository(gdb, log)
	quotas := repository.NewQuotaRepository(gdb, log)
	cursors := repository.NewSyncCursorRepository(gdb, log)
	idems := repository.NewIdempotencyRepository(gdb, log)

	simCache := cache.NewRedisSimCache(redisClient, cfg.Cache, log)
	quotaCache := cache.NewRedisQuotaCache(redisClient, cfg.Cache, log)
	txManager := db.NewTransactionManager(gdb)

	provider := nce.NewClient(cfg.Provider, cfg.Retry, log)
	reconciler := appsim.NewReconciler(sims, usage, quotas, simCache, quotaCache, log)

	app := &App{
		Config:     cfg,
		Logger:     log,
		Redis:      redisClient,
		Provider:   provider,
		Reconciler: reconciler,
		Executor:   appsim.NewCommandExecutor(provider, reconciler, idems, cfg.Sync, log),
		Queries:    appsim.NewQueryService(sims, usage, quotas, simCache, quotaCache, log),

		InventoryJob: appsim.NewInventorySyncJob(provider, reconciler, sims, cursors, txManager, cfg.Sync, log),
		UsageJob:     appsim.NewUsageSyncJob(provider, reconciler, sims, usage, cursors, cfg.Sync, log),
		QuotaJob:     appsim.NewQuotaCheckJob(provider, reconciler, sims, cursors, cfg.Sync, log),
		CleanupJob:   appsim.NewCleanupJob(sims, idems, cursors, cfg.Sync, log),
	}
	app.Trigger = appsim.NewSyncTrigger(cfg.Sync.JobTimeout(), log,
		app.InventoryJob, app.UsageJob, app.QuotaJob, app.CleanupJob)

	return app, cleanup, nil
}
