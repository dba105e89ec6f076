package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/simflux/simflux/internal/interfaces/cli/daemon"
	"github.com/simflux/simflux/internal/interfaces/cli/simcmd"
	"github.com/simflux/simflux/internal/interfaces/cli/syncjob"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "simflux",
		Short:   "SIM provider sync engine",
		Long:    `Simflux keeps a local mirror of provider-managed IoT SIMs: inventory, usage history, and quota state, plus idempotent provider commands.`,
		Version: version,
	}

	rootCmd.AddCommand(
		daemon.NewCommand(),
		syncjob.NewCommand(),
		simcmd.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
