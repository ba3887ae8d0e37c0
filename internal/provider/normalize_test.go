package provider

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/event"
)

func TestNormalizeDateAndClock(t *testing.T) {
	dates := map[string]string{
		"2026-10-19":          "2026-10-19",
		"2026/10/19":          "2026-10-19",
		"10/19/2026":          "2026-10-19",
		"2026-10-19T20:00:00": "2026-10-19",
		"TBA":                 "",
		"":                    "",
		"next week":           "",
	}
	for in, want := range dates {
		if got := normalizeDate(in); got != want {
			t.Errorf("normalizeDate(%q) = %q, want %q", in, got, want)
		}
	}

	clocks := map[string]string{
		"20:00:00": "20:00",
		"20:00":    "20:00",
		"7:30 PM":  "19:30",
		"7:30pm":   "19:30",
		"9 am":     "09:00",
		"TBA":      "",
		"evening":  "",
	}
	for in, want := range clocks {
		if got := normalizeClock(in); got != want {
			t.Errorf("normalizeClock(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
		D flexFloat `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1.5, "b": "-122.4", "c": "", "d": null}`), &v); err != nil {
		t.Fatal(err)
	}
	if !v.A.Valid || v.A.Value != 1.5 {
		t.Errorf("a = %+v", v.A)
	}
	if !v.B.Valid || v.B.Value != -122.4 {
		t.Errorf("b = %+v", v.B)
	}
	if v.C.Valid || v.D.Valid {
		t.Errorf("empty and null should be invalid: c=%+v d=%+v", v.C, v.D)
	}
}

func TestMapCategories(t *testing.T) {
	table := map[string][]string{
		"music":  {"concerts", "festivals"},
		"comedy": {"comedy"},
		"food":   {"festivals", "culinary"},
	}
	order := sortedKeys(table)

	tests := []struct {
		name  string
		hints QueryHints
		want  []string
	}{
		{name: "category lookup", hints: QueryHints{Categories: []string{"Music"}}, want: []string{"concerts", "festivals"}},
		{name: "keyword contains key", hints: QueryHints{Keywords: []string{"standup comedy night"}}, want: []string{"comedy"}},
		{name: "deduplicated in order", hints: QueryHints{Categories: []string{"music", "food"}}, want: []string{"concerts", "festivals", "culinary"}},
		{name: "fallback", hints: QueryHints{Keywords: []string{"knitting"}}, want: []string{"misc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapCategories(table, order, tt.hints, []string{"misc"})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mapCategories() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeLinks(t *testing.T) {
	e := event.Event{URL: "javascript:alert(1)", ImageURL: "https://img.example.com/a.jpg"}
	sanitizeLinks(&e)
	if e.URL != "" {
		t.Errorf("URL = %q, want blank", e.URL)
	}
	if e.ImageURL != "https://img.example.com/a.jpg" {
		t.Errorf("ImageURL = %q, want unchanged", e.ImageURL)
	}

	e = event.Event{URL: "https://www.eventbrite.com/e/1", ImageURL: "http://169.254.169.254/latest"}
	sanitizeLinks(&e)
	if e.URL == "" || e.ImageURL != "" {
		t.Errorf("got URL %q ImageURL %q", e.URL, e.ImageURL)
	}
}
