package aggregator

import (
	"slices"
	"unicode/utf8"

	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/provider"
)

const (
	minKeywordLen = 3
	maxKeywords   = 5
)

// fillerWords carry no search value on their own.
var fillerWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "near": true,
	"some": true, "any": true, "want": true, "looking": true, "find": true,
	"something": true, "this": true, "that": true, "today": true,
	"tonight": true, "tomorrow": true, "weekend": true, "around": true,
}

// queryHints derives provider hints from the request alone, so the fan-out
// does not wait for the profile build.
func (e *Engine) queryHints(req Request) provider.QueryHints {
	var hints provider.QueryHints

	if req.Profile != nil {
		for _, c := range req.Profile.Preferences.PreferredCategories {
			hints.Categories = appendUnique(hints.Categories, c)
		}
	}
	for _, c := range e.taxonomy.Classify(req.Activity) {
		hints.Categories = appendUnique(hints.Categories, c)
	}
	if len(hints.Categories) > e.cfg.MaxHintCategories {
		hints.Categories = hints.Categories[:e.cfg.MaxHintCategories]
	}
	if len(hints.Categories) == 0 {
		hints.Categories = slices.Clone(e.cfg.DefaultCategories)
	}

	for _, w := range profile.Words(req.Activity) {
		if utf8.RuneCountInString(w) < minKeywordLen || fillerWords[w] {
			continue
		}
		hints.Keywords = appendUnique(hints.Keywords, w)
		if len(hints.Keywords) == maxKeywords {
			break
		}
	}
	return hints
}

func appendUnique(list []string, s string) []string {
	if s == "" || slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
