// Package dedup collapses records of the same real-world event reported by
// several providers into one representative.
package dedup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/onnwee/whatnow/internal/event"
)

// TrustTable maps a provider tag to the completeness bonus its records get.
// Providers missing from the table get no bonus.
type TrustTable map[string]float64

// DefaultTrust ranks the ticketing provider above the aggregator sources.
func DefaultTrust() TrustTable {
	return TrustTable{
		"ticketmaster": 1.0,
		"eventbrite":   0.5,
		"allevents":    0,
	}
}

var articles = map[string]bool{"the": true, "a": true, "an": true}

// Resolver deduplicates events by identity key. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	trust TrustTable
}

// NewResolver creates a Resolver. A nil trust table uses DefaultTrust.
func NewResolver(trust TrustTable) *Resolver {
	if trust == nil {
		trust = DefaultTrust()
	}
	copied := make(TrustTable, len(trust))
	for k, v := range trust {
		copied[strings.ToLower(k)] = v
	}
	return &Resolver{trust: copied}
}

// Completeness scores how informative a record is: one point per populated
// field among description, image, venue, time and url, plus the provider bonus.
func (r *Resolver) Completeness(e event.Event) float64 {
	return float64(e.InformativeFields()) + r.trust[strings.ToLower(e.Source)]
}

// Resolve returns one event per identity key, in order of each key's first
// appearance. Within a group the record with the strictly highest
// completeness wins; ties keep the earlier record. The input is not modified.
func (r *Resolver) Resolve(events []event.Event) []event.Event {
	index := make(map[string]int, len(events))
	out := make([]event.Event, 0, len(events))
	scores := make([]float64, 0, len(events))

	for _, e := range events {
		key := IdentityKey(e)
		score := r.Completeness(e)
		if i, ok := index[key]; ok {
			if score > scores[i] {
				out[i] = e
				scores[i] = score
			}
			continue
		}
		index[key] = len(out)
		out = append(out, e)
		scores = append(scores, score)
	}
	return out
}

// IdentityKey is normalized name, normalized venue and date joined by "|".
// Records whose name normalizes to nothing fall back to their provider ID so
// they never collide with unrelated records.
func IdentityKey(e event.Event) string {
	name := NormalizeName(e.Name)
	if name == "" {
		return "id|" + e.Source + "|" + e.ID
	}
	venue := ""
	if e.HasVenue() {
		venue = NormalizeName(e.Venue)
	}
	return name + "|" + venue + "|" + e.Date
}

// NormalizeName lower-cases s, folds accents, replaces punctuation with spaces,
// drops the articles "the", "a" and "an" and collapses whitespace.
// "The Jazz Fest!" and "jazz  fest" both normalize to "jazz fest".
func NormalizeName(s string) string {
	// transform chains carry buffers, so one is built per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if !articles[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
