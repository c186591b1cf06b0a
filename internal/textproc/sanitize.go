// Package textproc holds the pure text transforms of the ingestion
// pipeline: sanitization, document cleaning, density classification and
// chunking.
package textproc

import (
	"strings"
	"unicode"
)

// Sanitize strips NUL bytes and non-printable control characters,
// preserving newline, tab and carriage return. It must run before any
// classification or storage: the persistence layer rejects NUL outright.
// Sanitize is idempotent.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\t', '\r':
			return r
		}
		if r == 0 || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
