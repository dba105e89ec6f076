// Package syncjob implements the one-shot sync command used for operational
// catch-ups outside the schedule.
package syncjob

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/interfaces/cli/bootstrap"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <job>",
		Short: "Run one sync job immediately",
		Long: `Run a single sync job to completion and exit.

Jobs: ` + strings.Join(sim.KnownJobs, ", "),
		Args: cobra.ExactArgs(1),
		RunE: run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	app, cleanup, err := bootstrap.Build()
	if err != nil {
		return err
	}
	defer cleanup()

	jobs := map[string]interface {
		Execute(ctx context.Context) (int, error)
	}{
		sim.JobInventorySync: app.InventoryJob,
		sim.JobUsageSync:     app.UsageJob,
		sim.JobQuotaCheck:    app.QuotaJob,
		sim.JobCleanup:       app.CleanupJob,
	}
	job, ok := jobs[jobName]
	if !ok {
		return fmt.Errorf("%w: %s (known: %s)", sim.ErrUnknownJob, jobName, strings.Join(sim.KnownJobs, ", "))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.Sync.JobTimeout())
	defer cancel()

	processed, err := job.Execute(ctx)
	if err != nil {
		return fmt.Errorf("sync job %s failed after %d items: %w", jobName, processed, err)
	}

	app.Logger.Infow("sync job finished", "job", jobName, "processed", processed)
	return nil
}
