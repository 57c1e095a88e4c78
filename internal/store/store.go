// Package store persists the profile-keyed safety state as JSON files:
// sensitive entries and rate-governor counters. Reads are size-capped
// and symlink-checked; writes are atomic (temp file + rename). A
// malformed state file is a configuration error, not a fatal one — it
// recovers to the empty value with a logged warning so the tool never
// refuses to run because of a corrupt file.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/Martian-Engineering/mb-cli/internal/engine"
	"github.com/Martian-Engineering/mb-cli/internal/rate"
	"github.com/Martian-Engineering/mb-cli/internal/safefile"
)

// maxStateBytes caps how large a state file may grow before reads
// refuse it. Facts and rate counters are both small; anything bigger
// is a tampered or runaway file.
const maxStateBytes = 4 << 20

// Facts is the persisted sensitive-entry store, keyed by profile.
type Facts map[string][]engine.SensitiveEntry

// LoadFacts reads the facts file. Missing or malformed files yield an
// empty store.
func LoadFacts(path string, logger *slog.Logger) Facts {
	facts := Facts{}
	if !loadJSON(path, &facts, logger) || facts == nil {
		return Facts{}
	}
	return facts
}

// SaveFacts writes the facts file atomically. Facts contain the
// operator's secrets, so the file is owner-only.
func SaveFacts(path string, facts Facts) error {
	return saveJSON(path, facts, 0o600)
}

// Upsert adds or replaces an entry by label within the profile.
// Labels are unique per profile; last write wins.
func (f Facts) Upsert(profile string, entry engine.SensitiveEntry) {
	entries := f[profile]
	for i, e := range entries {
		if e.Label == entry.Label {
			entries[i] = entry
			return
		}
	}
	f[profile] = append(entries, entry)
}

// Remove deletes an entry by label. It reports whether the label
// existed.
func (f Facts) Remove(profile, label string) bool {
	entries := f[profile]
	for i, e := range entries {
		if e.Label == label {
			f[profile] = append(entries[:i], entries[i+1:]...)
			if len(f[profile]) == 0 {
				delete(f, profile)
			}
			return true
		}
	}
	return false
}

// LoadRate reads the rate-governor state. Missing or malformed files
// yield empty state.
func LoadRate(path string, logger *slog.Logger) rate.State {
	state := rate.State{}
	if !loadJSON(path, &state, logger) || state == nil {
		return rate.State{}
	}
	return state
}

// SaveRate writes the rate state atomically.
func SaveRate(path string, state rate.State) error {
	return saveJSON(path, state, 0o644)
}

// loadJSON reports whether v now holds a complete parse of the file.
// Any failure means the caller should fall back to the empty value; a
// partial unmarshal must not leak through.
func loadJSON(path string, v any, logger *slog.Logger) bool {
	data, err := safefile.ReadFileMax(path, maxStateBytes)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("unreadable state file, starting empty", "path", path, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("malformed state file, starting empty", "path", path, "error", err)
		return false
	}
	return true
}

func saveJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return safefile.WriteAtomic(path, data, perm)
}
