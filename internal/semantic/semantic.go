// Package semantic adapts the out-of-process similarity collaborator:
// a local helper that embeds short documents and answers ranked
// similarity queries against a named collection. The engine treats it
// strictly as an enrichment signal — every failure mode (missing
// binary, timeout, bad output) collapses to ErrUnavailable and the
// caller falls back to regex-only detection.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable means the collaborator could not serve this call.
// Call sites must treat it as a normal branch, not a failure.
var ErrUnavailable = errors.New("semantic collaborator unavailable")

// Result is one ranked similarity hit.
type Result struct {
	Score      float64 `json:"score"`
	DocumentID string  `json:"document_id"`
	Snippet    string  `json:"snippet,omitempty"`
}

// Searcher is the collaborator capability. A nil Searcher means
// semantic enrichment is disabled.
type Searcher interface {
	// EnsureCollection (re)indexes the documents under sourceDir into
	// the named collection.
	EnsureCollection(ctx context.Context, name, sourceDir string) error
	// Search returns hits scoring at or above minScore, best first.
	Search(ctx context.Context, collection, query string, minScore float64) ([]Result, error)
}

// Client invokes the collaborator binary. Protocol: subcommands on
// argv, query text on stdin, a JSON array of results on stdout.
type Client struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient returns a Client, or nil if command is empty (semantic
// enrichment disabled).
func NewClient(command string, timeout time.Duration, logger *slog.Logger) *Client {
	if command == "" {
		return nil
	}
	return &Client{command: command, timeout: timeout, logger: logger}
}

// EnsureCollection runs `<command> ensure-collection <name> <dir>`.
func (c *Client) EnsureCollection(ctx context.Context, name, sourceDir string) error {
	_, err := c.run(ctx, "", "ensure-collection", name, sourceDir)
	return err
}

// Search runs `<command> search <collection> <minScore>` with the query
// on stdin and parses the JSON result list.
func (c *Client) Search(ctx context.Context, collection, query string, minScore float64) ([]Result, error) {
	out, err := c.run(ctx, query, "search", collection, strconv.FormatFloat(minScore, 'f', -1, 64))
	if err != nil {
		return nil, err
	}
	var results []Result
	if err := json.Unmarshal(out, &results); err != nil {
		c.logger.Warn("semantic collaborator returned unparseable output", "error", err)
		return nil, fmt.Errorf("%w: bad output", ErrUnavailable)
	}
	// The collaborator applies its own relevance floor, but enforce
	// ours too in case the floors disagree.
	kept := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// run executes the collaborator with a hard timeout. On timeout the
// process is killed by CommandContext and the call reports unavailable.
func (c *Client) run(ctx context.Context, stdin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.logger.Warn("semantic collaborator call failed",
			"args", args, "error", err, "stderr", truncateStderr(stderr.String()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stdout.Bytes(), nil
}

func truncateStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// WriteCollectionDocs materializes docs (id → text) as one file per
// document under dir, removing files for ids no longer present, so the
// collection index stays in sync with the current entry set.
func WriteCollectionDocs(dir string, docs map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating docs dir: %w", err)
	}
	keep := make(map[string]bool, len(docs))
	for id, text := range docs {
		name := sanitizeDocName(id) + ".txt"
		keep[name] = true
		path := filepath.Join(dir, name)
		if existing, err := os.ReadFile(path); err == nil && string(existing) == text {
			continue
		}
		if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
			return fmt.Errorf("writing doc %s: %w", id, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing docs dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") && !keep[e.Name()] {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}

// sanitizeDocName keeps document filenames boring: labels are
// user-supplied and must not become path tricks.
func sanitizeDocName(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, id)
}
