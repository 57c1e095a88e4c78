package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Martian-Engineering/mb-cli/internal/sanitize"
)

func newSanitizeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sanitize [text]",
		Short: "Strip invisible and obfuscating Unicode from text",
		Long: "Removes tag characters, zero-width characters, bidirectional overrides, " +
			"variation selectors, and interlinear annotation marks. The cleaned text goes " +
			"to stdout; a warning per removed category goes to stderr.",
		Example: `  mb sanitize "suspicious paste"
  cat message.txt | mb sanitize`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			res := sanitize.Sanitize(text)
			if asJSON {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			fmt.Fprint(cmd.OutOrStdout(), res.Text)

			warn := color.New(color.FgYellow)
			for _, w := range res.Warnings {
				warn.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full result as JSON")
	return cmd
}
