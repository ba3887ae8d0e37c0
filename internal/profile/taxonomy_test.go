package profile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultTaxonomy_Valid(t *testing.T) {
	tax := DefaultTaxonomy()
	if err := tax.Validate(); err != nil {
		t.Fatalf("default taxonomy invalid: %v", err)
	}
	names := tax.CategoryNames()
	if !slices.IsSorted(names) {
		t.Errorf("category names not sorted: %v", names)
	}
	for _, want := range []string{"music", "sports", "arts", "comedy", "technology", "food", "travel", "nature"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing category %q", want)
		}
	}
	if tax.MinConfidence != DefaultMinConfidence {
		t.Errorf("MinConfidence = %v", tax.MinConfidence)
	}
	if len(tax.Keywords("unknown")) != 0 {
		t.Error("unknown category should have no keywords")
	}
}

func TestTaxonomy_Validate(t *testing.T) {
	tests := []struct {
		name string
		tax  Taxonomy
		want error
	}{
		{"empty", Taxonomy{}, ErrEmptyTaxonomy},
		{
			"category without keywords",
			Taxonomy{Categories: map[string]Category{"music": {}}},
			ErrEmptyCategory,
		},
		{
			"confidence out of range",
			Taxonomy{MinConfidence: 1.5, Categories: map[string]Category{"music": {Keywords: []string{"jazz"}}}},
			ErrInvalidConfidence,
		},
		{
			"valid",
			Taxonomy{MinConfidence: 0.2, Categories: map[string]Category{"music": {Keywords: []string{"jazz"}}}},
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.tax.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func writeTaxonomy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write taxonomy: %v", err)
	}
	return path
}

func TestLoadTaxonomy_OverridesSections(t *testing.T) {
	path := writeTaxonomy(t, `
version: "custom-1"
min_confidence: 0.3
categories:
  chess:
    keywords: [chess, openings, endgame]
    venues: [club]
    sentiment_boost: [brilliant]
`)
	tax, err := LoadTaxonomy(path)
	if err != nil {
		t.Fatalf("LoadTaxonomy() error = %v", err)
	}
	if tax.Version != "custom-1" {
		t.Errorf("version = %q", tax.Version)
	}
	if tax.MinConfidence != 0.3 {
		t.Errorf("min confidence = %v", tax.MinConfidence)
	}
	if got := tax.CategoryNames(); !slices.Equal(got, []string{"chess"}) {
		t.Errorf("categories = %v", got)
	}
	if got := tax.Categories["chess"].Venues; !slices.Equal(got, []string{"club"}) {
		t.Errorf("venues = %v", got)
	}
	if tax.Sentiment["love"] != 0.9 {
		t.Error("sentiment section should keep defaults")
	}
	if len(tax.Traits) != 7 {
		t.Error("traits section should keep defaults")
	}
}

func TestLoadTaxonomy_Errors(t *testing.T) {
	if _, err := LoadTaxonomy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTaxonomy(t, `
categories:
  chess:
    venues: [club]
`)
	if _, err := LoadTaxonomy(path); !errors.Is(err, ErrEmptyCategory) {
		t.Errorf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestTaxonomy_Classify(t *testing.T) {
	tax := DefaultTaxonomy()
	if got := tax.Classify("stand-up comedy and a jazz set"); !slices.Equal(got, []string{"comedy", "music"}) {
		t.Errorf("Classify() = %v, want [comedy music]", got)
	}
	if got := tax.Classify("something fun"); len(got) != 0 {
		t.Errorf("Classify() = %v, want none", got)
	}
}
