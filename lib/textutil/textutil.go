package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and drops every whitespace character, it is
// the key used to compare nicknames and tag headers.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// StripDecorations removes emoji, symbols and punctuation that people add to
// cells by hand (ex. "⏳ Pending!!") leaving only letters, digits and spaces.
func StripDecorations(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		switch {
		case unicode.IsLetter(c), unicode.IsDigit(c):
			out.WriteRune(c)
		case unicode.IsSpace(c):
			out.WriteRune(' ')
		}
	}
	return CollapseSpaces(out.String())
}

// CollapseSpaces trims a string and replaces runs of whitespace (including
// non-breaking spaces) with a single space.
func CollapseSpaces(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
