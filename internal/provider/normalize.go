package provider

import (
	"bytes"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/validate"
)

// flexFloat decodes a number that providers send either bare or quoted.
// Valid is false for null, empty or unparseable values.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = flexFloat{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		*f = flexFloat{Value: v, Valid: err == nil}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	*f = flexFloat{Value: v, Valid: err == nil}
	return nil
}

// flexString decodes an identifier sent either as a string or a number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "Jan 2, 2006", "2006-01-02T15:04:05", time.RFC3339}

var clockLayouts = []string{"15:04:05", "15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// normalizeDate converts a provider date to YYYY-MM-DD, or "" when unknown.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "TBA") || strings.EqualFold(s, "TBD") {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// normalizeClock converts a provider time of day to HH:MM, or "" when unknown.
func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "TBA") || strings.EqualFold(s, "TBD") {
		return ""
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}

// splitLocal splits "2006-01-02T15:04:05" into normalized date and clock.
func splitLocal(s string) (date, clock string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if d, c, ok := strings.Cut(s, "T"); ok {
		return normalizeDate(d), normalizeClock(c)
	}
	return normalizeDate(s), ""
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

// mapCategories translates hints into provider categories using table.
// Hint categories are looked up directly; keywords match any table key they contain.
// Order follows first appearance. fallback is used when nothing matches.
func mapCategories(table map[string][]string, order []string, hints QueryHints, fallback []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(vals []string) {
		for _, v := range vals {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}

	for _, c := range hints.Categories {
		add(table[strings.ToLower(strings.TrimSpace(c))])
	}
	if len(hints.Keywords) > 0 {
		text := strings.ToLower(strings.Join(hints.Keywords, " "))
		for _, key := range order {
			if strings.Contains(text, key) {
				add(table[key])
			}
		}
	}
	if len(out) == 0 {
		add(fallback)
	}
	return out
}

// sanitizeLinks blanks event and image links that are not public http(s)
// URLs. The event itself is kept.
func sanitizeLinks(e *event.Event) {
	if _, err := validate.PublicLink(e.URL); err != nil {
		e.URL = ""
	}
	if _, err := validate.PublicLink(e.ImageURL); err != nil {
		e.ImageURL = ""
	}
}
