package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Martian-Engineering/mb-cli/internal/engine"
)

// Outcome is the final disposition of an outbound action.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeBlocked Outcome = "blocked"
	OutcomeDryRun  Outcome = "dry_run"
)

// Entry is one immutable audit record. The full content never appears:
// only a truncated preview plus a hash of the trimmed content, so the
// log can answer "did you say X?" without itself becoming a leak
// vector. PrevHash chains each record to the raw bytes of the previous
// line, making silent edits detectable.
type Entry struct {
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Profile     string         `json:"profile"`
	Action      string         `json:"action"`
	Method      string         `json:"method,omitempty"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Outcome     Outcome        `json:"outcome"`
	Reason      string         `json:"reason,omitempty"`
	Matches     []engine.Match `json:"matches,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Preview     string         `json:"preview,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	PrevHash    string         `json:"prev_hash,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// PreviewRunes caps the stored content preview.
const PreviewRunes = 240

// NewEntry builds an entry for the given content, filling ID,
// timestamp, preview, and content hash. PrevHash is set by the
// appender.
func NewEntry(profile, action, method, endpoint string, outcome Outcome, content string) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Profile:     profile,
		Action:      action,
		Method:      method,
		Endpoint:    endpoint,
		Outcome:     outcome,
		Preview:     Preview(content, PreviewRunes),
		ContentHash: ContentHash(content),
	}
}

// Preview truncates content to maxRunes visible characters, appending
// an ellipsis when anything was cut.
func Preview(content string, maxRunes int) string {
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "…"
}

// ContentHash is the SHA-256 hex digest of the trimmed content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}
