package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// normalizeText prepares user text for storage:
//   - Unicode NFC so equal strings compare and count equal,
//   - CRLF/CR to LF, runs of 3+ LFs collapsed to two,
//   - surrounding whitespace trimmed.
func normalizeText(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// checkText normalizes raw and enforces non-empty and maxRunes (when > 0).
func checkText(raw string, maxRunes int) (string, error) {
	s := normalizeText(raw)
	if s == "" {
		return "", ErrEmptyContent
	}
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		return "", ErrTooLong
	}
	return s, nil
}

// previewRunes caps notification previews.
const previewRunes = 140

// preview flattens whitespace and clips s to previewRunes runes.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:previewRunes-1])) + "…"
}
