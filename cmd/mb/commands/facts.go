package commands

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Martian-Engineering/mb-cli/internal/engine"
	"github.com/Martian-Engineering/mb-cli/internal/store"
)

func newFactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Manage a profile's registered sensitive facts",
		Long: "Sensitive facts are the strings and patterns that must never appear in " +
			"outbound content: the operator's name, email, location, employer. They are " +
			"matched case-insensitively on every outbound scan for the owning profile.",
	}
	cmd.AddCommand(newFactsAddCmd(), newFactsListCmd(), newFactsRemoveCmd())
	return cmd
}

func newFactsAddCmd() *cobra.Command {
	var (
		isRegex  bool
		severity string
	)

	cmd := &cobra.Command{
		Use:   "add <profile> <label> [value]",
		Short: "Register a sensitive fact",
		Long: "Adds a fact under the given label. When the value is omitted it is read " +
			"from the terminal without echo, so the fact itself stays out of shell " +
			"history and process listings.",
		Example: `  mb facts add tom owner-name "Jane Doe"
  mb facts add tom owner-email        # value prompted, hidden
  mb facts add tom phone --regex '\b555-\d{4}\b'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			profile, label := args[0], args[1]

			var value string
			if len(args) == 3 {
				value = args[2]
			} else {
				fmt.Fprintf(os.Stderr, "value for %s (hidden): ", label)
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(os.Stderr)
				if err != nil {
					return fmt.Errorf("reading value: %w", err)
				}
				value = string(raw)
			}
			if value == "" {
				return fmt.Errorf("empty value for %s", label)
			}
			if isRegex {
				if _, err := regexp.Compile(value); err != nil {
					return fmt.Errorf("invalid pattern: %w", err)
				}
			}

			facts := store.LoadFacts(cfg.Paths.Facts, logger)
			facts.Upsert(profile, engine.SensitiveEntry{
				Label:    label,
				Pattern:  value,
				IsRegex:  isRegex,
				Severity: severity,
			})
			if err := store.SaveFacts(cfg.Paths.Facts, facts); err != nil {
				return fmt.Errorf("saving facts: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered %s for profile %s\n", label, profile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&isRegex, "regex", false, "treat the value as a regular expression")
	cmd.Flags().StringVar(&severity, "severity", "high", "severity recorded on matches (low, medium, high)")
	return cmd
}

func newFactsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [profile]",
		Short: "List registered facts (labels only, never values)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			facts := store.LoadFacts(cfg.Paths.Facts, newLogger(cfg))

			var profiles []string
			if len(args) == 1 {
				profiles = []string{args[0]}
			} else {
				for p := range facts {
					profiles = append(profiles, p)
				}
				sort.Strings(profiles)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "PROFILE\tLABEL\tKIND\tSEVERITY\n") //nolint:errcheck // CLI output
			for _, p := range profiles {
				for _, e := range facts[p] {
					kind := "literal"
					if e.IsRegex {
						kind = "regex"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p, e.Label, kind, e.Severity) //nolint:errcheck // CLI output
				}
			}
			return tw.Flush()
		},
	}
}

func newFactsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <profile> <label>",
		Short: "Remove a registered fact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			facts := store.LoadFacts(cfg.Paths.Facts, newLogger(cfg))

			if !facts.Remove(args[0], args[1]) {
				return fmt.Errorf("no fact %q for profile %q", args[1], args[0])
			}
			if err := store.SaveFacts(cfg.Paths.Facts, facts); err != nil {
				return fmt.Errorf("saving facts: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from profile %s\n", args[1], args[0])
			return nil
		},
	}
}
