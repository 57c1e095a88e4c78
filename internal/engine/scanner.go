// Package engine implements the evasion-resistant safety scanner: the
// inbound jailbreak scan and the outbound sensitive-fact match. Both
// run entirely locally; the semantic collaborator only ever adds
// matches on top of what the regex path finds.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Martian-Engineering/mb-cli/internal/semantic"
)

// JailbreakCollection is the semantic collection seeded from the
// literal jailbreak library.
const JailbreakCollection = "jailbreak"

// Limits bound the work a single scan may perform, regardless of how
// adversarial the input shape is.
type Limits struct {
	MaxBytes    int // sample prefix cap
	TokenCap    int // base64/hex candidates per decode layer
	MatchBudget int // accumulated matches before decode loops stop
}

// DefaultLimits mirror the config defaults.
func DefaultLimits() Limits {
	return Limits{MaxBytes: 16384, TokenCap: 16, MatchBudget: 64}
}

// Scanner holds the pattern library plus the optional semantic
// collaborator. A nil *Scanner is not usable; a Scanner with a nil
// searcher runs the regex path only.
type Scanner struct {
	limits   Limits
	searcher semantic.Searcher
	// semanticMaxBytes caps what is sent to the collaborator; larger
	// samples skip the semantic step with a warning instead of failing.
	semanticMaxBytes int
	minScore         float64
	docsDir          string
	logger           *slog.Logger
}

// NewScanner creates a scanner. searcher may be nil.
func NewScanner(limits Limits, searcher semantic.Searcher, semanticMaxBytes int, minScore float64, docsDir string, logger *slog.Logger) *Scanner {
	if limits.MaxBytes <= 0 {
		limits = DefaultLimits()
	}
	return &Scanner{
		limits:           limits,
		searcher:         searcher,
		semanticMaxBytes: semanticMaxBytes,
		minScore:         minScore,
		docsDir:          docsDir,
		logger:           logger,
	}
}

// ScanInbound scans platform content for adversarial instructions.
// It never blocks: matches annotate the content for the caller to
// display. Returned warnings describe degraded steps (e.g., the
// semantic pass was skipped), not detections.
func (s *Scanner) ScanInbound(ctx context.Context, text string, useSemantic bool) ([]Match, []string) {
	sample := prefixBytes(text, s.limits.MaxBytes)
	var matches []Match
	var warnings []string

	matches = append(matches, scanSample(sample, "")...)

	if looksEncoded(sample) {
		s.logger.Debug("sample looks encoded, running decode layers", "bytes", len(sample))
		matches = s.scanDecodedLayers(sample, matches)
	}

	if useSemantic && s.searcher != nil {
		if len(sample) > s.semanticMaxBytes {
			warnings = append(warnings, "sample too large for semantic scan; regex-only")
		} else {
			sem, err := s.semanticJailbreak(ctx, sample)
			if err != nil {
				warnings = append(warnings, "semantic collaborator unavailable; regex-only")
			} else {
				matches = append(matches, sem...)
			}
		}
	}

	return dedupe(matches), warnings
}

// scanDecodedLayers runs the bounded decode-and-rescan passes. Layers
// are ordered shallow-to-deep so dedupe keeps the shallowest hit.
func (s *Scanner) scanDecodedLayers(sample string, matches []Match) []Match {
	budget := s.limits.MatchBudget

	matches = append(matches, scanSample(rot13(sample), "decoded_rot13:")...)

	for shift := 1; shift <= 25; shift++ {
		if shift == 13 {
			continue
		}
		if len(matches) >= budget {
			break
		}
		prefix := fmt.Sprintf("decoded_caesar_%d:", shift)
		matches = append(matches, scanSample(caesarShift(sample, shift), prefix)...)
	}

	if len(matches) < budget {
		for _, decoded := range base64Candidates(sample, s.limits.TokenCap) {
			matches = append(matches, scanSample(decoded, "decoded_base64:")...)
			if len(matches) >= budget {
				break
			}
		}
	}
	if len(matches) < budget {
		for _, decoded := range hexCandidates(sample, s.limits.TokenCap) {
			matches = append(matches, scanSample(decoded, "decoded_hex:")...)
			if len(matches) >= budget {
				break
			}
		}
	}
	return matches
}

// scanSample matches one text layer against the literal and regex
// libraries. layerPrefix tags labels with decode provenance; it is
// empty for the surface layer.
func scanSample(text, layerPrefix string) []Match {
	lowered := strings.ToLower(text)
	var out []Match
	for _, p := range jailbreakLiterals {
		if strings.Contains(lowered, p.Phrase) {
			out = append(out, Match{
				Source:  SourceRegex,
				Label:   layerPrefix + p.Label,
				Pattern: p.Phrase,
			})
		}
	}
	for _, p := range socialEngineeringPatterns {
		if p.Re.MatchString(text) {
			out = append(out, Match{
				Source:  SourceRegex,
				Label:   layerPrefix + p.Label,
				Pattern: p.Re.String(),
			})
		}
	}
	return out
}

// semanticJailbreak seeds the jailbreak collection from the literal
// library (a cheap no-op once indexed) and queries it.
func (s *Scanner) semanticJailbreak(ctx context.Context, sample string) ([]Match, error) {
	dir := docsDirFor(s.docsDir, JailbreakCollection)
	if err := semantic.WriteCollectionDocs(dir, JailbreakSeedDocs()); err != nil {
		return nil, err
	}
	if err := s.searcher.EnsureCollection(ctx, JailbreakCollection, dir); err != nil {
		return nil, err
	}
	results, err := s.searcher.Search(ctx, JailbreakCollection, sample, s.minScore)
	if err != nil {
		return nil, err
	}
	return semanticMatches(results), nil
}

func semanticMatches(results []semantic.Result) []Match {
	out := make([]Match, 0, len(results))
	for _, r := range results {
		out = append(out, Match{
			Source:  SourceSemantic,
			Label:   r.DocumentID,
			Score:   r.Score,
			File:    r.DocumentID,
			Snippet: truncate(r.Snippet, 200),
		})
	}
	return out
}

// docsDirFor is where a collection's backing documents live.
func docsDirFor(base, collection string) string {
	return filepath.Join(base, collection)
}

// prefixBytes caps s at n bytes without splitting a UTF-8 sequence.
func prefixBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
