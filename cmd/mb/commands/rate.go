package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Martian-Engineering/mb-cli/internal/rate"
	"github.com/Martian-Engineering/mb-cli/internal/store"
)

func newRateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Inspect and drive the per-profile rate governor",
	}
	cmd.AddCommand(newRateCheckCmd(), newRateRecordCmd(), newRateRetryAfterCmd(), newRateStatusCmd())
	return cmd
}

func newRateCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <profile> <action>",
		Short: "Check whether an action is currently allowed",
		Example: `  mb rate check tom post
  mb rate check tom comment`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			act, err := parseAction(args[1])
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			governor := rate.NewGovernor(rateLimits(cfg))
			state := store.LoadRate(cfg.Paths.Rate, logger)
			decision := governor.Check(state, args[0], act)
			if err := store.SaveRate(cfg.Paths.Rate, state); err != nil {
				logger.Warn("saving rate state failed", "error", err)
			}

			if decision.Allowed {
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "allowed")
				return nil
			}
			color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "denied: %s (retry in %.0fs)\n",
				decision.Reason, float64(decision.WaitMs)/1000)
			return fmt.Errorf("%s denied for %s", args[1], args[0])
		},
	}
}

func newRateRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <profile> <action>",
		Short: "Record a performed action against the profile's windows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			act, err := parseAction(args[1])
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			governor := rate.NewGovernor(rateLimits(cfg))
			state := store.LoadRate(cfg.Paths.Rate, logger)
			governor.Record(state, args[0], act)
			if err := store.SaveRate(cfg.Paths.Rate, state); err != nil {
				return fmt.Errorf("saving rate state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s for %s\n", args[1], args[0])
			return nil
		},
	}
}

func newRateRetryAfterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-after <profile> <action> <seconds>",
		Short: "Apply a server-declared Retry-After cooldown",
		Long: "When the platform answers 429 with a Retry-After header, record it here. " +
			"Server-declared cooldowns always win over local accounting.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			act, err := parseAction(args[1])
			if err != nil {
				return err
			}
			var seconds int
			if _, err := fmt.Sscanf(args[2], "%d", &seconds); err != nil || seconds <= 0 {
				return fmt.Errorf("invalid seconds %q", args[2])
			}

			logger := newLogger(cfg)
			governor := rate.NewGovernor(rateLimits(cfg))
			state := store.LoadRate(cfg.Paths.Rate, logger)
			governor.ApplyServerRetryAfter(state, args[0], act, seconds)
			if err := store.SaveRate(cfg.Paths.Rate, state); err != nil {
				return fmt.Errorf("saving rate state: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s blocked for %s until %s\n",
				args[1], args[0], time.Now().Add(time.Duration(seconds)*time.Second).Format(time.RFC3339))
			return nil
		},
	}
}

func newRateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show in-window counts for every tracked profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			state := store.LoadRate(cfg.Paths.Rate, logger)

			if len(state) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracked activity.")
				return nil
			}

			profiles := make([]string, 0, len(state))
			for p := range state {
				profiles = append(profiles, p)
			}
			sort.Strings(profiles)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "PROFILE\tREQUESTS\tCOMMENTS\tPOSTS\tSERVER BLOCKS\n") //nolint:errcheck // CLI output
			for _, p := range profiles {
				ps := state[p]
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", //nolint:errcheck // CLI output
					p, len(ps.Requests), len(ps.Comments), len(ps.Posts), len(ps.BlockedUntil))
			}
			return tw.Flush()
		},
	}
}
