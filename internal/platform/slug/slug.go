package slug

import (
	"regexp"
	"strings"
	"unicode"
)

var separators = regexp.MustCompile(`[^a-z0-9]+`)

const maxLen = 48

// Make lowercases input into a hyphenated file-safe token.
func Make(input string) string {
	s := separators.ReplaceAllString(strings.ToLower(strings.TrimSpace(input)), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// Join slugs each part and joins them with hyphens.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			out = append(out, Make(part))
		}
	}
	return Make(strings.Join(out, "-"))
}

// Humanize turns an id like "warm-up" into "Warm up".
func Humanize(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' || unicode.IsSpace(r) })
	if len(words) == 0 {
		return ""
	}
	s := strings.ToLower(strings.Join(words, " "))
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
