package tools

import (
	"strings"
	"unicode"
)

// DefaultFetchLimit caps the text returned by page fetching tools.
const DefaultFetchLimit = 2000

// Clean drops non-ASCII runes, collapses blank-line runs and cuts the result to limit bytes.
func Clean(s string, limit int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	out := strings.Join(lines, "\n")

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
