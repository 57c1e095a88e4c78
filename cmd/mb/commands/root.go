package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "mb",
		Short: "Content-safety gateway for autonomous social agents",
		Long: "mb — Unicode sanitization, injection scanning, sensitive-fact blocking, " +
			"rate governance, and a tamper-evident audit trail between an agent and the platform.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath(), "config file path")

	root.AddCommand(
		newInitCmd(),
		newSanitizeCmd(),
		newScanCmd(),
		newFactsCmd(),
		newRateCmd(),
		newLogsCmd(),
		newStatusCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)

	return root
}
