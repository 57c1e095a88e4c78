package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Martian-Engineering/mb-cli/internal/audit"
	"github.com/Martian-Engineering/mb-cli/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway configuration and audit summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			out := cmd.OutOrStdout()

			semanticState := "disabled"
			if cfg.Semantic.Command != "" {
				semanticState = cfg.Semantic.Command
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "  mb status")
			fmt.Fprintln(out, "  ────────────────────────────────────────")
			fmt.Fprintf(out, "  Config:        %s\n", cfgFile)
			fmt.Fprintf(out, "  Scan cap:      %d bytes\n", cfg.Scan.MaxBytes)
			fmt.Fprintf(out, "  Semantic:      %s\n", semanticState)

			facts := store.LoadFacts(cfg.Paths.Facts, logger)
			var factCount int
			for _, entries := range facts {
				factCount += len(entries)
			}
			fmt.Fprintf(out, "  Profiles:      %d with %d registered facts\n", len(facts), factCount)

			entries, err := audit.Query(cfg.Paths.Audit, audit.QueryOpts{Limit: 100000})
			if err == nil {
				var sent, blocked, dryRun int
				for _, e := range entries {
					switch e.Outcome {
					case audit.OutcomeSent:
						sent++
					case audit.OutcomeBlocked:
						blocked++
					case audit.OutcomeDryRun:
						dryRun++
					}
				}
				fmt.Fprintln(out, "  ────────────────────────────────────────")
				fmt.Fprintf(out, "  Decisions:     %d\n", len(entries))
				fmt.Fprintf(out, "  Sent:          %d\n", sent)
				fmt.Fprintf(out, "  Blocked:       %d\n", blocked)
				fmt.Fprintf(out, "  Dry runs:      %d\n", dryRun)

				if _, verr := audit.Verify(cfg.Paths.Audit); verr != nil {
					fmt.Fprintf(out, "  Chain:         BROKEN (%v)\n", verr)
				} else {
					fmt.Fprintf(out, "  Chain:         intact\n")
				}
			}

			fmt.Fprintln(out)
			return nil
		},
	}
}
