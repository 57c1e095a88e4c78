package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/Martian-Engineering/mb-cli/internal/semantic"
)

// SensitiveEntry is an operator-registered fact that must never leave
// the machine: a literal string or a regex, with a severity used only
// for display. Entries are owned by a profile and label-unique within
// it.
type SensitiveEntry struct {
	Label    string `json:"label"`
	Pattern  string `json:"pattern"`
	IsRegex  bool   `json:"is_regex"`
	Severity string `json:"severity"` // low, medium, high
}

// SensitiveCollection returns the semantic collection name for a
// profile's registered facts.
func SensitiveCollection(profile string) string {
	return "sensitive-" + profile
}

// ScanOutbound checks agent-authored text against the built-in
// credential shapes and the profile's registered facts. Any returned
// match is a block signal for the caller; this function only reports.
// The list is deliberately not deduplicated — outbound callers care
// about every hit, and repeated labels mean repeated offenses.
func (s *Scanner) ScanOutbound(ctx context.Context, text, profile string, entries []SensitiveEntry, useSemantic bool) ([]Match, []string) {
	var matches []Match
	var warnings []string

	for _, p := range credentialPatterns {
		if loc := p.Re.FindString(text); loc != "" {
			matches = append(matches, Match{
				Source:  SourceRegex,
				Label:   "credential:" + p.Label,
				Pattern: p.Re.String(),
				Snippet: truncate(loc, 64),
			})
		}
	}

	lowered := strings.ToLower(text)
	for _, e := range entries {
		if e.IsRegex {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				// User-supplied regex; a typo must never break the scan.
				s.logger.Debug("skipping invalid sensitive-entry regex",
					"profile", profile, "label", e.Label, "error", err)
				continue
			}
			if re.MatchString(text) {
				matches = append(matches, Match{
					Source:  SourceRegex,
					Label:   e.Label,
					Pattern: e.Pattern,
				})
			}
			continue
		}
		if strings.Contains(lowered, strings.ToLower(e.Pattern)) {
			matches = append(matches, Match{
				Source:  SourceRegex,
				Label:   e.Label,
				Pattern: e.Pattern,
			})
		}
	}

	if useSemantic && s.searcher != nil && len(entries) > 0 {
		if len(text) > s.semanticMaxBytes {
			warnings = append(warnings, "text too large for semantic scan; regex-only")
		} else {
			sem, err := s.semanticSensitive(ctx, text, profile, entries)
			if err != nil {
				warnings = append(warnings, "semantic collaborator unavailable; regex-only")
			} else {
				matches = append(matches, sem...)
			}
		}
	}

	return matches, warnings
}

// semanticSensitive keeps the profile's private collection in sync with
// its current entries, then queries it with the outbound text.
func (s *Scanner) semanticSensitive(ctx context.Context, text, profile string, entries []SensitiveEntry) ([]Match, error) {
	collection := SensitiveCollection(profile)
	docs := make(map[string]string, len(entries))
	for _, e := range entries {
		docs[e.Label] = e.Pattern
	}
	dir := docsDirFor(s.docsDir, collection)
	if err := semantic.WriteCollectionDocs(dir, docs); err != nil {
		return nil, err
	}
	if err := s.searcher.EnsureCollection(ctx, collection, dir); err != nil {
		return nil, err
	}
	results, err := s.searcher.Search(ctx, collection, text, s.minScore)
	if err != nil {
		return nil, err
	}
	return semanticMatches(results), nil
}
