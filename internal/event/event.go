// Package event defines the normalized event records shared by every stage of
// the recommendation pipeline.
package event

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidLocation is returned when a request or record carries missing or
// out-of-range coordinates.
var ErrInvalidLocation = errors.New("invalid location")

// TBA marks a venue or time that the provider has not announced yet.
const TBA = "TBA"

// Date and time layouts used by the normalized Event fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Location is a resolved geographic point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Validate reports whether the coordinates are finite and inside
// lat∈[-90,90], lon∈[-180,180].
func (l Location) Validate() error {
	return ValidateCoordinates(l.Latitude, l.Longitude)
}

// ApproxZone estimates the local zone as a fixed offset of one hour per
// 15 degrees of longitude. The second return value is false when the
// coordinates are unset or invalid.
func (l Location) ApproxZone() (*time.Location, bool) {
	if (l.Latitude == 0 && l.Longitude == 0) || l.Validate() != nil {
		return time.UTC, false
	}
	hours := int(math.Round(l.Longitude / 15))
	return time.FixedZone(fmt.Sprintf("UTC%+d", hours), hours*3600), true
}

// ValidateCoordinates checks a latitude/longitude pair.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidLocation)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range [-90, 90]", ErrInvalidLocation, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range [-180, 180]", ErrInvalidLocation, lng)
	}
	return nil
}

// Event is one provider's record after normalization.
// Date and Time are empty when the provider has not announced them.
type Event struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Date        string   `json:"date,omitempty"`
	Time        string   `json:"time,omitempty"`
	Venue       string   `json:"venue,omitempty"`
	Address     string   `json:"address,omitempty"`
	City        string   `json:"city,omitempty"`
	Location    Location `json:"location"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	URL         string   `json:"url,omitempty"`
	Description string   `json:"description,omitempty"`
	Source      string   `json:"source"`
}

// Validate rejects records without a name or with unusable coordinates.
// A missing venue or time is allowed and only lowers completeness.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("event name is empty")
	}
	return e.Location.Validate()
}

// HasVenue reports whether the venue is known.
func (e Event) HasVenue() bool {
	v := strings.TrimSpace(e.Venue)
	return v != "" && !strings.EqualFold(v, TBA)
}

// HasTime reports whether both the start date and start time are known.
func (e Event) HasTime() bool {
	return e.Date != "" && e.Time != "" && !strings.EqualFold(e.Time, TBA)
}

// Start parses the start date (and time, when known) in loc.
// The second return value is false when the date is missing or unparseable.
func (e Event) Start(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if e.Date == "" {
		return time.Time{}, false
	}
	if e.HasTime() {
		if t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.Time, loc); err == nil {
			return t, true
		}
	}
	t, err := time.ParseInLocation(DateLayout, e.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// InformativeFields counts the populated fields among description, image,
// concrete venue, concrete time and url.
func (e Event) InformativeFields() int {
	n := 0
	if strings.TrimSpace(e.Description) != "" {
		n++
	}
	if e.ImageURL != "" {
		n++
	}
	if e.HasVenue() {
		n++
	}
	if e.HasTime() {
		n++
	}
	if e.URL != "" {
		n++
	}
	return n
}

// Factor names attached to CanonicalEvent.PersonalizationFactors.
const (
	FactorPromptMatch     = "prompt_match"
	FactorInterestMatch   = "interest_match"
	FactorTimeRelevance   = "time_relevance"
	FactorCompleteness    = "completeness"
	FactorBehavioralMatch = "behavioral_match"
	FactorModelScore      = "model_score"
)

// CanonicalEvent is the deduplicated representation of a real-world event.
// Scores are attached once by the ranker.
type CanonicalEvent struct {
	Event
	RelevanceScore         float64            `json:"relevance_score"`
	RecommendationReason   string             `json:"recommendation_reason"`
	PersonalizationFactors map[string]float64 `json:"personalization_factors,omitempty"`
}

// NewCanonical wraps a resolved event with empty scores.
func NewCanonical(e Event) CanonicalEvent {
	return CanonicalEvent{Event: e}
}

// WithScore returns a copy of c carrying the given score, reason and factors.
// The factors map is copied.
func (c CanonicalEvent) WithScore(score float64, reason string, factors map[string]float64) CanonicalEvent {
	out := c
	out.RelevanceScore = Clamp01(score)
	out.RecommendationReason = reason
	if factors != nil {
		out.PersonalizationFactors = make(map[string]float64, len(factors))
		for k, v := range factors {
			out.PersonalizationFactors[k] = v
		}
	}
	return out
}

// Clamp01 bounds v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
