package engine

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

// Heuristic thresholds for the "looks encoded" classifier. These are
// empirically tuned cutoffs, not derived constants: adjust against a
// labeled corpus, not by reasoning about them.
const (
	minEncodedLen    = 20   // shortest unbroken token worth decoding
	minCipherRunLen  = 24   // shortest alphabetic run checked for cipher signature
	vowelRatioCutoff = 0.30 // natural English sits near 0.38
	spaceRatioCutoff = 0.125
	printableCutoff  = 0.85 // decoded bytes must be mostly printable ASCII
	minTokenLen      = 20   // shortest base64/hex token extracted
)

var (
	reBase64Token = regexp.MustCompile(`[A-Za-z0-9+/]{20,}={0,2}`)
	reHexToken    = regexp.MustCompile(`[0-9a-fA-F]{20,}`)
	reCipherRun   = regexp.MustCompile(`[A-Za-z][A-Za-z ]{10,}[A-Za-z]`)
)

// looksEncoded classifies whether a sample likely hides an encoded or
// enciphered payload. Three independent signals: an unbroken
// base64-shaped token, an unbroken hex-shaped run, and the low-vowel
// low-space signature of substitution-ciphered English. The token
// signals are per-token rather than whole-sample so that ordinary
// prose, which is dense in the base64 alphabet once spaces are
// ignored, never trips them.
func looksEncoded(s string) bool {
	for _, tok := range reBase64Token.FindAllString(s, -1) {
		if len(tok) >= minEncodedLen && len(tok)%4 == 0 {
			return true
		}
	}
	for _, tok := range reHexToken.FindAllString(s, -1) {
		if len(tok) >= minEncodedLen {
			return true
		}
	}

	for _, run := range reCipherRun.FindAllString(s, -1) {
		if len(run) < minCipherRunLen {
			continue
		}
		letters, vowels, spaces := 0, 0, 0
		for _, r := range run {
			switch {
			case r == ' ':
				spaces++
			case strings.ContainsRune("aeiouAEIOU", r):
				vowels++
				letters++
			default:
				letters++
			}
		}
		if letters == 0 {
			continue
		}
		vowelRatio := float64(vowels) / float64(letters)
		spaceRatio := float64(spaces) / float64(len(run))
		if vowelRatio < vowelRatioCutoff && spaceRatio < spaceRatioCutoff {
			return true
		}
	}
	return false
}

// rot13 is caesarShift(13), named separately because it is by far the
// most common cipher seen in the wild and gets its own decode pass.
func rot13(s string) string {
	return caesarShift(s, 13)
}

// caesarShift rotates ASCII letters forward by n, preserving case and
// leaving other runes alone.
func caesarShift(s string, n int) string {
	shift := rune(n % 26)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+shift)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+shift)%26
		default:
			return r
		}
	}, s)
}

// base64Candidates extracts up to cap candidate tokens and returns
// their decoded text, keeping only results that are mostly printable
// ASCII. Both padded and raw encodings are tried.
func base64Candidates(s string, tokenCap int) []string {
	var out []string
	for _, tok := range reBase64Token.FindAllString(s, tokenCap) {
		raw, err := base64.StdEncoding.DecodeString(tok)
		if err != nil {
			raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(tok, "="))
			if err != nil {
				continue
			}
		}
		if printableRatio(raw) >= printableCutoff {
			out = append(out, string(raw))
		}
	}
	return out
}

// hexCandidates extracts even-length hex runs and decodes them, with
// the same printability gate as base64Candidates.
func hexCandidates(s string, tokenCap int) []string {
	var out []string
	for _, tok := range reHexToken.FindAllString(s, tokenCap) {
		if len(tok)%2 != 0 {
			tok = tok[:len(tok)-1]
			if len(tok) < minTokenLen {
				continue
			}
		}
		raw, err := hex.DecodeString(tok)
		if err != nil {
			continue
		}
		if printableRatio(raw) >= printableCutoff {
			out = append(out, string(raw))
		}
	}
	return out
}

func printableRatio(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	printable := 0
	for _, c := range b {
		if (c >= 0x20 && c < 0x7F) || c == '\n' || c == '\r' || c == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(len(b))
}
