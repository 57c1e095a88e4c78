package commands

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/Martian-Engineering/mb-cli/internal/mcp"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start mb as an MCP server (stdio)",
		Long: `Exposes the gateway as an MCP tool server. Add to your MCP client config:

  {
    "mcpServers": {
      "mb": {
        "command": "mb",
        "args": ["mcp", "--config", "~/.mb/mb.yaml"]
      }
    }
  }

Tools: sanitize_text, scan_inbound, scan_outbound, check_rate_limit, audit_query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			scanner := buildScanner(cfg, logger)
			governor := rate.NewGovernor(rateLimits(cfg))

			s := mcpserver.NewServer(cfg, scanner, governor, logger)
			return mcpserver.Serve(s)
		},
	}
}
