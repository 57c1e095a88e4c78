package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Martian-Engineering/mb-cli/internal/audit"
	"github.com/Martian-Engineering/mb-cli/internal/config"
	"github.com/Martian-Engineering/mb-cli/internal/engine"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
	"github.com/Martian-Engineering/mb-cli/internal/sanitize"
	"github.com/Martian-Engineering/mb-cli/internal/store"
)

type handlers struct {
	cfg      *config.Config
	scanner  *engine.Scanner
	governor *rate.Governor
	logger   *slog.Logger
}

// --- Tool definitions ---

func sanitizeTextTool() mcplib.Tool {
	return mcplib.NewTool("sanitize_text",
		mcplib.WithDescription(
			"Strip invisible and obfuscating Unicode (tag characters, zero-width, "+
				"bidi overrides, variation selectors) from text and report what was removed.",
		),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The text to sanitize"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(false),
	)
}

func scanInboundTool() mcplib.Tool {
	return mcplib.NewTool("scan_inbound",
		mcplib.WithDescription(
			"Scan platform content for adversarial instructions: jailbreak phrasing, "+
				"social engineering, and the same hidden behind ROT13/Caesar/base64/hex. "+
				"Flags, never blocks — always show flagged content with its warnings.",
		),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The inbound content to scan"),
		),
		mcplib.WithBoolean("semantic",
			mcplib.Description("Also query the semantic similarity collaborator"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(false),
	)
}

func scanOutboundTool() mcplib.Tool {
	return mcplib.NewTool("scan_outbound",
		mcplib.WithDescription(
			"Check agent-authored text against built-in credential shapes and the "+
				"profile's registered sensitive facts before it leaves the machine. "+
				"Any match is a block signal.",
		),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("The outbound text to check"),
		),
		mcplib.WithString("profile",
			mcplib.Required(),
			mcplib.Description("Profile whose sensitive facts apply"),
		),
		mcplib.WithBoolean("semantic",
			mcplib.Description("Also query the semantic similarity collaborator"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(false),
	)
}

func checkRateLimitTool() mcplib.Tool {
	return mcplib.NewTool("check_rate_limit",
		mcplib.WithDescription(
			"Check whether a profile may perform an action (request, comment, post) "+
				"under the sliding-window limits and any server-imposed cooldown.",
		),
		mcplib.WithString("profile",
			mcplib.Required(),
			mcplib.Description("Profile name"),
		),
		mcplib.WithString("action",
			mcplib.Required(),
			mcplib.Description("Action class: request, comment, or post"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(false),
	)
}

func auditQueryTool() mcplib.Tool {
	return mcplib.NewTool("audit_query",
		mcplib.WithDescription(
			"Query the outbound audit log. Returns decision records with outcomes, "+
				"matched rules, and content previews (never full content).",
		),
		mcplib.WithString("outcome",
			mcplib.Description("Filter by outcome: sent, blocked, dry_run"),
		),
		mcplib.WithString("profile",
			mcplib.Description("Filter by profile name"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum entries to return (default 20)"),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithDestructiveHintAnnotation(false),
		mcplib.WithOpenWorldHintAnnotation(false),
	)
}

// --- Handlers ---

func (h *handlers) handleSanitizeText(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text := request.GetString("text", "")
	res := sanitize.Sanitize(text)
	data, _ := json.MarshalIndent(res, "", "  ")
	return mcplib.NewToolResultText(string(data)), nil
}

func (h *handlers) handleScanInbound(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text := request.GetString("text", "")
	useSemantic := request.GetBool("semantic", false)

	res := sanitize.Sanitize(text)
	matches, warnings := h.scanner.ScanInbound(ctx, res.Text, useSemantic)

	result := map[string]any{
		"matches":               matches,
		"sanitization_warnings": res.Warnings,
		"scan_warnings":         warnings,
		"flagged":               len(matches) > 0,
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	return mcplib.NewToolResultText(string(data)), nil
}

func (h *handlers) handleScanOutbound(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	text := request.GetString("text", "")
	profile := request.GetString("profile", "")
	if profile == "" {
		return mcplib.NewToolResultError("profile is required"), nil
	}
	useSemantic := request.GetBool("semantic", false)

	facts := store.LoadFacts(h.cfg.Paths.Facts, h.logger)
	res := sanitize.Sanitize(text)
	matches, warnings := h.scanner.ScanOutbound(ctx, res.Text, profile, facts[profile], useSemantic)

	result := map[string]any{
		"matches":               matches,
		"sanitization_warnings": res.Warnings,
		"scan_warnings":         warnings,
		"block":                 len(matches) > 0,
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	return mcplib.NewToolResultText(string(data)), nil
}

func (h *handlers) handleCheckRateLimit(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	profile := request.GetString("profile", "")
	action := rate.Action(request.GetString("action", ""))
	if profile == "" {
		return mcplib.NewToolResultError("profile is required"), nil
	}
	switch action {
	case rate.ActionRequest, rate.ActionComment, rate.ActionPost:
	default:
		return mcplib.NewToolResultError(fmt.Sprintf("unknown action %q (want request, comment, or post)", action)), nil
	}

	state := store.LoadRate(h.cfg.Paths.Rate, h.logger)
	decision := h.governor.Check(state, profile, action)
	// Pruning may have shrunk the state; persist the cleaned view.
	if err := store.SaveRate(h.cfg.Paths.Rate, state); err != nil {
		h.logger.Warn("saving pruned rate state failed", "error", err)
	}

	data, _ := json.MarshalIndent(decision, "", "  ")
	return mcplib.NewToolResultText(string(data)), nil
}

func (h *handlers) handleAuditQuery(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	outcome := request.GetString("outcome", "")
	profile := request.GetString("profile", "")
	limit := request.GetInt("limit", 0)
	if limit <= 0 {
		limit = 20
	}

	entries, err := audit.Query(h.cfg.Paths.Audit, audit.QueryOpts{
		Outcome: outcome,
		Profile: profile,
		Limit:   limit,
	})
	if err != nil {
		return mcplib.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	data, _ := json.MarshalIndent(entries, "", "  ")
	return mcplib.NewToolResultText(string(data)), nil
}
