package textproc

import (
	"regexp"
	"strings"
)

var (
	pageNumberLine = regexp.MustCompile(`(?m)^\s*(?:[-–—]\s*)?(?:[Pp]age\s+)?\d{1,4}(?:\s*[-–—])?\s*$`)
	hyphenWrap     = regexp.MustCompile(`(\p{L})-\r?\n(\p{L})`)
	excessBlank    = regexp.MustCompile(`\n{3,}`)
)

// Clean removes extraction artifacts that hurt chunk quality: lines that
// are only a page number, hyphenation across line wraps, and runs of
// blank lines. It never changes the meaning of the text.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = pageNumberLine.ReplaceAllString(s, "")
	s = hyphenWrap.ReplaceAllString(s, "$1$2")
	s = excessBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
