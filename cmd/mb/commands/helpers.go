package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Martian-Engineering/mb-cli/internal/config"
	"github.com/Martian-Engineering/mb-cli/internal/engine"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
	"github.com/Martian-Engineering/mb-cli/internal/semantic"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mb.yaml"
	}
	return filepath.Join(home, ".mb", "mb.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildScanner wires a scanner from config. The semantic collaborator
// is only attached when a command is configured; a typed nil would
// defeat the scanner's availability check.
func buildScanner(cfg *config.Config, logger *slog.Logger) *engine.Scanner {
	var searcher semantic.Searcher
	if cfg.Semantic.Command != "" {
		searcher = semantic.NewClient(cfg.Semantic.Command, cfg.Semantic.Timeout, logger)
	}
	limits := engine.Limits{
		MaxBytes:    cfg.Scan.MaxBytes,
		TokenCap:    cfg.Scan.DecodeTokenCap,
		MatchBudget: cfg.Scan.MatchBudget,
	}
	return engine.NewScanner(limits, searcher, cfg.Semantic.MaxBytes, cfg.Semantic.MinScore, cfg.Semantic.DocsDir, logger)
}

func rateLimits(cfg *config.Config) rate.Limits {
	return rate.Limits{
		RequestsPerMinute: cfg.Rate.RequestsPerMinute,
		CommentsPerHour:   cfg.Rate.CommentsPerHour,
		PostCooldownMs:    int64(cfg.Rate.PostCooldownS) * 1000,
	}
}

// readText resolves the text to operate on: the positional argument,
// or stdin when the argument is "-" or absent.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func parseAction(s string) (rate.Action, error) {
	switch a := rate.Action(s); a {
	case rate.ActionRequest, rate.ActionComment, rate.ActionPost:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q (want request, comment, or post)", s)
	}
}
