// Package simcmd implements the operator-facing SIM subcommands: reads
// against the local store and provider commands with idempotency keys.
package simcmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/interfaces/cli/bootstrap"
)

var (
	idempotencyKey string

	listStatus   string
	listOperator string
	listSearch   string
	listOffset   int
	listLimit    int

	usageFrom string
	usageTo   string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Inspect and manage SIMs",
	}

	cmd.AddCommand(
		newGetCommand(),
		newListCommand(),
		newUsageCommand(),
		newQuotaCommand(),
		newTopUpCommand(),
		newSMSCommand(),
		newStatusCommand("activate", "Activate a SIM"),
		newStatusCommand("deactivate", "Deactivate a SIM"),
		newResetCommand(),
	)
	return cmd
}

func addKeyFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&idempotencyKey, "key", "", "Idempotency key (generated when omitted)")
}

func resolveKey() string {
	if idempotencyKey != "" {
		return idempotencyKey
	}
	return uuid.NewString()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printOutcome(key string, outcome sim.CommandOutcome) error {
	return printJSON(struct {
		Key     string             `json:"idempotency_key"`
		Status  sim.OutcomeStatus  `json:"status"`
		Message string             `json:"message,omitempty"`
		Quota   *sim.QuotaSnapshot `json:"quota,omitempty"`
	}{Key: key, Status: outcome.Status, Message: outcome.Message, Quota: outcome.Quota})
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <iccid>",
		Short: "Show one SIM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			dto, err := app.Queries.GetSim(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(dto)
		},
	}
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List SIMs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := app.Queries.ListSims(cmd.Context(),
				sim.ListFilter{
					Status:   valueobjects.SimStatus(listStatus),
					Operator: listOperator,
					Search:   listSearch,
				},
				sim.Page{Offset: listOffset, Limit: listLimit},
			)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (active, inactive, suspended)")
	cmd.Flags().StringVar(&listOperator, "operator", "", "Filter by operator")
	cmd.Flags().StringVar(&listSearch, "search", "", "Match ICCID prefix or label substring")
	cmd.Flags().IntVar(&listOffset, "offset", 0, "Page offset")
	cmd.Flags().IntVar(&listLimit, "limit", 100, "Page size")
	return cmd
}

func newUsageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage <iccid>",
		Short: "Show stored usage records for a SIM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseTimeFlag(usageFrom)
			if err != nil {
				return err
			}
			to, err := parseTimeFlag(usageTo)
			if err != nil {
				return err
			}

			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := app.Queries.GetUsage(cmd.Context(), args[0], from, to)
			if err != nil {
				return err
			}
			return printJSON(records)
		},
	}
	cmd.Flags().StringVar(&usageFrom, "from", "", "Window start (RFC 3339, default 24h before end)")
	cmd.Flags().StringVar(&usageTo, "to", "", "Window end (RFC 3339, default now)")
	return cmd
}

func parseTimeFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339): %w", v, err)
	}
	return t, nil
}

func newQuotaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quota <iccid> <data|sms>",
		Short: "Show the locally stored quota snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := app.Queries.GetQuota(cmd.Context(), args[0], valueobjects.QuotaType(args[1]))
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func newTopUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topup <iccid> <data|sms> <volume>",
		Short: "Add volume to a SIM's quota",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid volume %q: %w", args[2], err)
			}

			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			key := resolveKey()
			outcome, err := app.Executor.TopUpQuota(cmd.Context(), args[0], valueobjects.QuotaType(args[1]), volume, key)
			if err != nil {
				return err
			}
			return printOutcome(key, outcome)
		},
	}
	addKeyFlag(cmd)
	return cmd
}

func newSMSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms <iccid> <payload>",
		Short: "Send an SMS to a SIM",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			key := resolveKey()
			outcome, err := app.Executor.SendSMS(cmd.Context(), args[0], args[1], key)
			if err != nil {
				return err
			}
			return printOutcome(key, outcome)
		},
	}
	addKeyFlag(cmd)
	return cmd
}

func newStatusCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <iccid>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			key := resolveKey()
			var outcome sim.CommandOutcome
			if use == "activate" {
				outcome, err = app.Executor.Activate(cmd.Context(), args[0], key)
			} else {
				outcome, err = app.Executor.Deactivate(cmd.Context(), args[0], key)
			}
			if err != nil {
				return err
			}
			return printOutcome(key, outcome)
		},
	}
	addKeyFlag(cmd)
	return cmd
}

func newResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <iccid>",
		Short: "Reset a SIM's network connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := bootstrap.Build()
			if err != nil {
				return err
			}
			defer cleanup()

			key := resolveKey()
			outcome, err := app.Executor.ResetConnectivity(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			return printOutcome(key, outcome)
		},
	}
	addKeyFlag(cmd)
	return cmd
}
