package rules

import (
	"strings"

	"github.com/tidwall/match"
)

// Match reports whether subject matches pattern, ignoring case.
// '*' matches any run of characters, including none. Every other
// character, '?' and '\' included, is literal.
func Match(pattern, subject string) bool {
	return match.Match(strings.ToLower(subject), escapePattern(strings.ToLower(pattern)))
}

// escapePattern quotes the metacharacters tidwall/match understands
// besides '*'.
func escapePattern(pattern string) string {
	if !strings.ContainsAny(pattern, `?\`) {
		return pattern
	}
	var b strings.Builder
	b.Grow(len(pattern) + 4)
	for _, r := range pattern {
		if r == '?' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
