package fields

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// reKeyValue matches one trimmed line. Only the first colon splits.
var reKeyValue = regexp.MustCompile(`^([^:]+):\s*(.*)$`)

// Parse extracts "key: value" pairs from text, one per line.
// Lines without a colon, or starting with one, are skipped. Later
// duplicates overwrite earlier values. Parse never fails.
func Parse(text string) *Fields {
	out := New()
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		m := reKeyValue.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		out.Set(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	return out
}

// splitLines breaks s at every line boundary: \n, \r, \r\n, vertical tab,
// form feed, the file/group/record separators, NEL and U+2028/U+2029.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
