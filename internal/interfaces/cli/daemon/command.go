// Package daemon implements the long-running sync engine command.
package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simflux/simflux/internal/infrastructure/database"
	"github.com/simflux/simflux/internal/infrastructure/persistence/models"
	"github.com/simflux/simflux/internal/infrastructure/scheduler"
	"github.com/simflux/simflux/internal/interfaces/cli/bootstrap"
)

var autoMigrate bool

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync engine",
		Long:  `Run the scheduled provider sync jobs (inventory, usage, quota, cleanup) until interrupted.`,
		RunE:  run,
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Run schema migration on startup (not recommended for production)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	app, cleanup, err := bootstrap.Build()
	if err != nil {
		return err
	}
	defer cleanup()

	log := app.Logger
	log.Infow("starting sync engine", "provider", app.Config.Provider.BaseURL)

	if autoMigrate {
		log.Infow("running schema migration")
		if err := database.Get().AutoMigrate(
			&models.SimModel{},
			&models.UsageRecordModel{},
			&models.QuotaModel{},
			&models.SyncCursorModel{},
			&models.IdempotencyRecordModel{},
		); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}

	manager, err := scheduler.NewSchedulerManager(app.Config.Sync, log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	syncCfg := app.Config.Sync
	if err := manager.RegisterSyncJob(app.InventoryJob, syncCfg.InventoryInterval()); err != nil {
		return fmt.Errorf("failed to register inventory sync: %w", err)
	}
	if err := manager.RegisterSyncJob(app.UsageJob, syncCfg.UsageInterval()); err != nil {
		return fmt.Errorf("failed to register usage sync: %w", err)
	}
	if err := manager.RegisterSyncJob(app.QuotaJob, syncCfg.QuotaInterval()); err != nil {
		return fmt.Errorf("failed to register quota check: %w", err)
	}
	if err := manager.RegisterCleanupJob(app.CleanupJob, syncCfg.CleanupCron); err != nil {
		return fmt.Errorf("failed to register cleanup: %w", err)
	}

	manager.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Infow("received signal, shutting down", "signal", sig)
	if err := manager.Stop(); err != nil {
		return fmt.Errorf("scheduler shutdown failed: %w", err)
	}

	log.Infow("sync engine stopped")
	return nil
}
