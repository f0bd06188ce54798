// Package textmatch screens message text against a configured banned-term
// set. Matching is case-insensitive and word-boundary aware so that a term
// never triggers as a substring of an unrelated longer word ("ass" must not
// match inside "classic").
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher tests normalized message text against an immutable term list.
// Terms are checked in configured order and the first match wins, so results
// are deterministic for a given input.
type Matcher struct {
	terms []string
}

// NewMatcher creates a Matcher from the configured term list. Terms are
// normalized the same way message bodies are; empty terms are dropped.
func NewMatcher(terms []string) *Matcher {
	m := &Matcher{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		if n := Normalize(t); n != "" {
			m.terms = append(m.terms, n)
		}
	}
	return m
}

// Normalize trims leading/trailing whitespace, collapses internal whitespace
// runs to a single space, and lowercases the result.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Match reports the first configured term found in body, bounded by
// non-alphanumeric characters or string edges. Returns ("", false) when no
// term matches.
func (m *Matcher) Match(body string) (string, bool) {
	text := Normalize(body)
	if text == "" {
		return "", false
	}
	for _, term := range m.terms {
		if containsWord(text, term) {
			return term, true
		}
	}
	return "", false
}

// containsWord reports whether term occurs in text with word-boundary
// semantics: the runes adjacent to the occurrence must not be letters or
// digits. Both strings are already normalized.
func containsWord(text, term string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		if boundaryBefore(text, i) && boundaryAfter(text, i+len(term)) {
			return true
		}
		start = i + 1
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
