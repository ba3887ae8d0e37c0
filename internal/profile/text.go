package profile

import (
	"regexp"
	"strings"
	"unicode"
)

// Text is lower-cased input reduced to single-space separated words, padded
// with a space on each side so whole-word lookups are plain substring checks.
type Text string

// NewText normalizes s for term matching. Hyphens and other punctuation become
// word breaks, so "hip-hop" matches "hip hop".
func NewText(s string) Text {
	return Text(" " + strings.Join(Words(s), " ") + " ")
}

// Words lower-cases s and splits it on anything that is not a letter or digit.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Has reports whether term occurs in t as whole words.
func (t Text) Has(term string) bool {
	norm := NewText(term)
	if norm == "  " {
		return false
	}
	return strings.Contains(string(t), string(norm))
}

// Matches returns the terms that occur in t, in input order.
func (t Text) Matches(terms []string) []string {
	var out []string
	for _, term := range terms {
		if t.Has(term) {
			out = append(out, term)
		}
	}
	return out
}

// Count returns how many of terms occur in t.
func (t Text) Count(terms []string) int {
	n := 0
	for _, term := range terms {
		if t.Has(term) {
			n++
		}
	}
	return n
}

// HasAny reports whether any of terms occurs in t.
func (t Text) HasAny(terms ...string) bool {
	for _, term := range terms {
		if t.Has(term) {
			return true
		}
	}
	return false
}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// Sentences splits s on terminal punctuation and drops empty pieces.
func Sentences(s string) []string {
	parts := sentenceBreak.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
