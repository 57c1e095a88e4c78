// Package mcp exposes the safety engine over the Model Context
// Protocol so the agent can ask "is this safe to send?" and "has the
// feed been tampered with?" as ordinary tool calls, without shelling
// out to the CLI.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Martian-Engineering/mb-cli/internal/config"
	"github.com/Martian-Engineering/mb-cli/internal/engine"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
)

// NewServer creates an MCP server exposing the mb safety tools.
func NewServer(cfg *config.Config, scanner *engine.Scanner, governor *rate.Governor, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"mb-safety",
		"0.3.0",
		server.WithToolCapabilities(false),
		server.WithInstructions(
			"mb-safety is a content-safety gateway between an agent and a social platform. "+
				"Use these tools to sanitize text, scan inbound content for prompt injection, "+
				"check outbound content for operator-private data, consult rate limits, and "+
				"query the audit log.",
		),
	)

	h := &handlers{
		cfg:      cfg,
		scanner:  scanner,
		governor: governor,
		logger:   logger,
	}

	s.AddTool(sanitizeTextTool(), h.handleSanitizeText)
	s.AddTool(scanInboundTool(), h.handleScanInbound)
	s.AddTool(scanOutboundTool(), h.handleScanOutbound)
	s.AddTool(checkRateLimitTool(), h.handleCheckRateLimit)
	s.AddTool(auditQueryTool(), h.handleAuditQuery)

	return s
}

// Serve runs the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
