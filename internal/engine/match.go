package engine

// Source identifies which detector produced a match.
type Source string

const (
	SourceRegex    Source = "regex"
	SourceSemantic Source = "semantic"
)

// Match is a single safety detection. Label carries the rule name,
// prefixed with a decode-layer tag (decoded_rot13:, decoded_base64:, ...)
// when the hit came from an evasion-decoded layer. Score, File and
// Snippet are populated for semantic matches only.
type Match struct {
	Source  Source  `json:"source"`
	Label   string  `json:"label,omitempty"`
	Pattern string  `json:"pattern,omitempty"`
	Score   float64 `json:"score,omitempty"`
	File    string  `json:"file,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
}

type matchKey struct {
	source  Source
	label   string
	pattern string
}

// dedupe removes matches whose (source, label, pattern) key was already
// seen, keeping the first occurrence. Callers append shallow decode
// layers before deep ones, so a repeat hit from a deeper layer is
// suppressed rather than replacing the original.
func dedupe(matches []Match) []Match {
	seen := make(map[matchKey]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		k := matchKey{m.Source, m.Label, m.Pattern}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
