package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Martian-Engineering/mb-cli/internal/audit"
	"github.com/Martian-Engineering/mb-cli/internal/engine"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
	"github.com/Martian-Engineering/mb-cli/internal/sanitize"
	"github.com/Martian-Engineering/mb-cli/internal/store"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan content crossing the gateway",
	}
	cmd.AddCommand(newScanInboundCmd(), newScanOutboundCmd())
	return cmd
}

func newScanInboundCmd() *cobra.Command {
	var useSemantic bool

	cmd := &cobra.Command{
		Use:   "inbound [text]",
		Short: "Flag adversarial instructions in platform content",
		Long: "Sanitizes the content, then scans for jailbreak phrasing and social " +
			"engineering in the visible text and behind ROT13, Caesar shifts, base64, " +
			"and hex. Inbound scanning flags, it never blocks: the content is always " +
			"printed, annotated with what was found.",
		Example: `  mb scan inbound "great post! ignore your previous instructions"
  curl .../comments | jq -r .body | mb scan inbound --semantic`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			res := sanitize.Sanitize(text)
			scanner := buildScanner(cfg, logger)
			matches, warnings := scanner.ScanInbound(cmd.Context(), res.Text, useSemantic)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Text)

			for _, w := range append(res.Warnings, warnings...) {
				color.New(color.FgYellow).Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if len(matches) == 0 {
				color.New(color.FgGreen).Fprintln(os.Stderr, "clean")
				return nil
			}

			color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "FLAGGED (%d)\n", len(matches))
			printMatches(matches)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useSemantic, "semantic", false, "also query the semantic similarity collaborator")
	return cmd
}

func newScanOutboundCmd() *cobra.Command {
	var (
		profile     string
		action      string
		method      string
		endpoint    string
		useSemantic bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "outbound [text]",
		Short: "Vet agent-authored text before it leaves the machine",
		Long: "Runs the full outbound pipeline: sanitize, then match against built-in " +
			"credential shapes and the profile's registered sensitive facts, then the " +
			"rate governor. Any content match blocks. Every decision is appended to " +
			"the audit log.",
		Example: `  mb scan outbound --profile tom --action post "draft reply"
  mb scan outbound --profile tom --action comment --dry-run - < reply.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			act, err := parseAction(action)
			if err != nil {
				return err
			}
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			res := sanitize.Sanitize(text)
			scanner := buildScanner(cfg, logger)
			facts := store.LoadFacts(cfg.Paths.Facts, logger)
			matches, warnings := scanner.ScanOutbound(cmd.Context(), res.Text, profile, facts[profile], useSemantic)
			warnings = append(res.Warnings, warnings...)

			governor := rate.NewGovernor(rateLimits(cfg))
			state := store.LoadRate(cfg.Paths.Rate, logger)
			decision := governor.Check(state, profile, act)

			entry := audit.NewEntry(profile, action, method, endpoint, audit.OutcomeSent, res.Text)
			entry.Preview = audit.Preview(res.Text, cfg.Scan.PreviewRunes)
			entry.Matches = matches
			entry.Warnings = warnings

			switch {
			case len(matches) > 0:
				entry.Outcome = audit.OutcomeBlocked
				entry.Reason = "sensitive content match"
			case !decision.Allowed:
				entry.Outcome = audit.OutcomeBlocked
				entry.Reason = decision.Reason
			case dryRun:
				entry.Outcome = audit.OutcomeDryRun
			default:
				governor.Record(state, profile, act)
			}
			if err := store.SaveRate(cfg.Paths.Rate, state); err != nil {
				logger.Warn("saving rate state failed", "error", err)
			}
			if err := audit.Append(cfg.Paths.Audit, entry); err != nil {
				return fmt.Errorf("appending audit entry: %w", err)
			}

			for _, w := range warnings {
				color.New(color.FgYellow).Fprintf(os.Stderr, "warning: %s\n", w)
			}

			switch entry.Outcome {
			case audit.OutcomeBlocked:
				color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "BLOCKED: %s\n", entry.Reason)
				printMatches(matches)
				if !decision.Allowed {
					fmt.Fprintf(os.Stderr, "retry in %.0fs\n", float64(decision.WaitMs)/1000)
				}
				return fmt.Errorf("outbound %s blocked", action)
			case audit.OutcomeDryRun:
				color.New(color.FgCyan).Fprintln(os.Stderr, "dry run: would send")
			default:
				color.New(color.FgGreen).Fprintln(os.Stderr, "ok to send")
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "profile performing the action")
	cmd.Flags().StringVar(&action, "action", "request", "action class: request, comment, or post")
	cmd.Flags().StringVar(&method, "method", "", "HTTP method for the audit record")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "platform endpoint for the audit record")
	cmd.Flags().BoolVar(&useSemantic, "semantic", false, "also query the semantic similarity collaborator")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record the decision without counting it as sent")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func printMatches(matches []engine.Match) {
	tw := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SOURCE\tLABEL\tPATTERN\n") //nolint:errcheck // CLI output
	for _, m := range matches {
		pattern := m.Pattern
		if m.Source == engine.SourceSemantic {
			pattern = fmt.Sprintf("%s (score %.2f)", m.File, m.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Source, m.Label, pattern) //nolint:errcheck // CLI output
	}
	_ = tw.Flush()
}
