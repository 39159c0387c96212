// Package sanitizer normalizes untrusted input before it reaches
// validation or storage. It is the sole XSS defense layer: every
// externally supplied value passes through Sanitize first.
package sanitizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// tagRegex matches markup-like substrings. Tags are removed outright
// before escaping, matching the stored-content contract.
var tagRegex = regexp.MustCompile(`<[^>]*>`)

// policy strips any remaining markup and escapes HTML-significant
// characters in text nodes. StrictPolicy is idempotent: entities are
// decoded during tokenization and re-encoded on output.
var policy = bluemonday.StrictPolicy()

// Sanitize returns a safe representation of text: markup-like
// substrings are stripped, then remaining HTML-significant characters
// are escaped. Sanitizing already-sanitized text is a no-op.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	stripped := tagRegex.ReplaceAllString(text, "")
	return policy.Sanitize(stripped)
}

// SafeInt sanitizes text and parses it as a base-10 integer.
// Parse failures yield 0. Callers that must reject malformed input
// use StrictInt instead; the two policies are deliberately separate
// functions so each call site's choice is visible.
func SafeInt(text string) int {
	n, err := StrictInt(text)
	if err != nil {
		return 0
	}
	return n
}

// StrictInt sanitizes text and parses it as a base-10 integer,
// returning an error on failure.
func StrictInt(text string) (int, error) {
	cleaned := strings.TrimSpace(Sanitize(text))
	return strconv.Atoi(cleaned)
}
