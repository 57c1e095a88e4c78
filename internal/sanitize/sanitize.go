// Package sanitize strips invisible and obfuscating Unicode from text
// before it is scanned or sent. Attackers hide instructions in Tags-block
// codepoints, zero-width characters, and bidi overrides; none of these
// have a legitimate place in platform text, with one exception: the
// regional-flag tag sequences (Scotland, Wales, England) which are
// ordinary emoji and must survive.
package sanitize

import (
	"sort"
	"strings"
)

// Warning categories, reported once each no matter how many codepoints
// were removed.
const (
	WarnTags        = "Stripped Unicode tag characters"
	WarnVariation   = "Stripped Unicode variation selectors"
	WarnZeroWidth   = "Stripped zero-width characters"
	WarnBidi        = "Stripped bidirectional override characters"
	WarnInterlinear = "Stripped interlinear annotation characters"
)

const (
	tagBlockStart = 0xE0000
	tagCancel     = 0xE007F
	flagBase      = 0x1F3F4
)

// allowedFlagTags are the decoded tag payloads of recognized subdivision
// flag sequences (GB nations). Everything else in the Tags block is an
// obfuscation channel.
var allowedFlagTags = map[string]bool{
	"gbeng": true,
	"gbsct": true,
	"gbwls": true,
}

// Result holds cleaned text plus what was removed.
type Result struct {
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
	Changed  bool     `json:"changed"`
}

// Sanitize removes obfuscating codepoints from text. It operates on the
// codepoint sequence so that multi-codepoint flag sequences are
// inspected as a unit.
func Sanitize(text string) Result {
	runes := []rune(text)
	var out []rune
	warned := map[string]bool{}
	var warnings []string

	warn := func(w string) {
		if !warned[w] {
			warned[w] = true
			warnings = append(warnings, w)
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == flagBase:
			// Possible flag tag sequence: base + tag chars + cancel.
			seq, payload, ok := flagTagSequence(runes[i:])
			if seq == 0 {
				out = append(out, r)
				continue
			}
			if ok && allowedFlagTags[payload] {
				out = append(out, runes[i:i+seq]...)
			} else {
				warn(WarnTags)
			}
			i += seq - 1
		case r >= tagBlockStart && r <= tagCancel:
			warn(WarnTags)
		case (r >= 0xFE00 && r <= 0xFE0F) || (r >= 0xE0100 && r <= 0xE01EF):
			warn(WarnVariation)
		case r == 0x200B || r == 0x200C || r == 0x200D || r == 0x2060:
			warn(WarnZeroWidth)
		case (r >= 0x202A && r <= 0x202E) || (r >= 0x2066 && r <= 0x2069):
			warn(WarnBidi)
		case r >= 0xFFF9 && r <= 0xFFFB:
			warn(WarnInterlinear)
		default:
			out = append(out, r)
		}
	}

	cleaned := string(out)
	return Result{
		Text:     cleaned,
		Warnings: warnings,
		Changed:  len(out) != len(runes),
	}
}

// flagTagSequence inspects a rune slice starting at a flag base symbol.
// It returns the sequence length in runes (0 if the base is not followed
// by tag characters), the decoded ASCII payload, and whether the
// sequence is well formed (terminated by the cancel tag).
func flagTagSequence(runes []rune) (length int, payload string, ok bool) {
	var sb strings.Builder
	i := 1
	for ; i < len(runes); i++ {
		r := runes[i]
		if r < tagBlockStart || r > tagCancel {
			break
		}
		if r == tagCancel {
			return i + 1, sb.String(), true
		}
		sb.WriteRune(rune(r - tagBlockStart))
	}
	if i == 1 {
		return 0, "", false // plain flag emoji, no tags attached
	}
	return i, sb.String(), false // ran out without a cancel tag
}

// SanitizeValue recursively sanitizes every string leaf of a JSON-like
// value (string | []any | map[string]any | scalar), to maxDepth levels.
// Inbound payload shapes are attacker-influenced, so recursion depth is
// bounded; below the bound, values pass through untouched.
func SanitizeValue(v any, maxDepth int) (any, []string, bool) {
	warned := map[string]bool{}
	var warnings []string
	changed := false

	var walk func(v any, depth int) any
	walk = func(v any, depth int) any {
		if depth > maxDepth {
			return v
		}
		switch t := v.(type) {
		case string:
			res := Sanitize(t)
			if res.Changed {
				changed = true
			}
			for _, w := range res.Warnings {
				if !warned[w] {
					warned[w] = true
					warnings = append(warnings, w)
				}
			}
			return res.Text
		case []any:
			out := make([]any, len(t))
			for i, e := range t {
				out[i] = walk(e, depth+1)
			}
			return out
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := make(map[string]any, len(t))
			for _, k := range keys {
				out[k] = walk(t[k], depth+1)
			}
			return out
		default:
			return v
		}
	}

	result := walk(v, 0)
	return result, warnings, changed
}

// MaxStructuredDepth is the recursion bound for SanitizeValue applied to
// payloads of unknown shape.
const MaxStructuredDepth = 4
