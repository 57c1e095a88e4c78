package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Martian-Engineering/mb-cli/internal/audit"
)

func newLogsCmd() *cobra.Command {
	var outcome, profile, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the outbound audit log",
		Example: `  mb logs
  mb logs --outcome blocked
  mb logs --profile tom --since 24h
  mb logs verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var sinceTime string
			if since != "" {
				dur, err := time.ParseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", since, err)
				}
				sinceTime = time.Now().Add(-dur).UTC().Format(time.RFC3339)
			}

			entries, err := audit.Query(cfg.Paths.Audit, audit.QueryOpts{
				Outcome: outcome,
				Profile: profile,
				Since:   sinceTime,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "TIME\tPROFILE\tACTION\tOUTCOME\tREASON\tPREVIEW\n") //nolint:errcheck // CLI output
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck // CLI output
					e.Timestamp, e.Profile, e.Action, e.Outcome, e.Reason, shortPreview(e.Preview))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (sent, blocked, dry_run)")
	cmd.Flags().StringVar(&profile, "profile", "", "filter by profile name")
	cmd.Flags().StringVar(&since, "since", "", "show entries since duration (e.g. 1h, 30m)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	cmd.AddCommand(newLogsVerifyCmd())
	return cmd
}

func newLogsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit log's hash chain",
		Long: "Walks the log and recomputes each record's link to the previous line. " +
			"A broken link means a record was edited or removed after the fact.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			count, err := audit.Verify(cfg.Paths.Audit)
			if err != nil {
				color.New(color.FgRed, color.Bold).Fprintln(cmd.OutOrStdout(), "TAMPERED")
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "chain intact: %d entries\n", count)
			return nil
		},
	}
}

func shortPreview(s string) string {
	const max = 48
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
