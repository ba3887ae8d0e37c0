package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEventbrite_Fetch(t *testing.T) {
	long := strings.Repeat("é", 600)
	payload := `{
  "events": [
    {
      "id": "777",
      "name": {"text": "Intro to Pottery Workshop"},
      "description": {"text": "` + long + `"},
      "url": "https://www.eventbrite.com/e/777",
      "start": {"local": "2026-10-24T10:00:00"},
      "venue": {
        "name": "Clay Studio",
        "address": {"address_1": "1 Market St", "city": "San Francisco", "latitude": "37.7941", "longitude": "-122.3951"}
      },
      "logo": {"url": "https://img.example.com/pottery.png"},
      "category": {"name": "Hobbies"},
      "subcategory": {"name": "Ceramics"}
    },
    {
      "id": "778",
      "name": {"text": ""},
      "start": {"local": "2026-10-25T10:00:00"}
    },
    {
      "id": "779",
      "name": {"text": "Online Talk"},
      "start": {"local": "2026-10-26"},
      "venue": null
    }
  ]
}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/search/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		q := r.URL.Query()
		if q.Get("location.within") != "50km" {
			t.Errorf("location.within = %q", q.Get("location.within"))
		}
		if q.Get("categories") != "115" {
			t.Errorf("categories = %q, want 115", q.Get("categories"))
		}
		if q.Get("q") != "pottery workshop" {
			t.Errorf("q = %q", q.Get("q"))
		}
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	eb, err := NewEventbrite(testConfig(srv.URL), nil, nil)
	if err != nil {
		t.Fatalf("NewEventbrite() error = %v", err)
	}

	events, err := eb.Fetch(context.Background(), sf, QueryHints{Keywords: []string{"pottery", "workshop"}})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (nameless record skipped)", len(events))
	}

	pottery := events[0]
	if n := utf8.RuneCountInString(pottery.Description); n != eventbriteDescriptionLimit {
		t.Errorf("description runes = %d, want %d", n, eventbriteDescriptionLimit)
	}
	if pottery.Date != "2026-10-24" || pottery.Time != "10:00" {
		t.Errorf("start = %s %s", pottery.Date, pottery.Time)
	}
	if pottery.Venue != "Clay Studio" || pottery.Address != "1 Market St" {
		t.Errorf("venue = %q, address = %q", pottery.Venue, pottery.Address)
	}
	if pottery.Location.Latitude != 37.7941 {
		t.Errorf("latitude = %v, want venue address latitude", pottery.Location.Latitude)
	}
	if pottery.Category != "Hobbies" || pottery.Subcategory != "Ceramics" {
		t.Errorf("category = %q/%q", pottery.Category, pottery.Subcategory)
	}
	if pottery.ImageURL != "https://img.example.com/pottery.png" {
		t.Errorf("ImageURL = %q", pottery.ImageURL)
	}

	talk := events[1]
	if talk.HasVenue() || talk.Time != "" || talk.Date != "2026-10-26" {
		t.Errorf("online talk = %+v", talk)
	}
	if talk.Location.Latitude != sf.Latitude || talk.Location.Longitude != sf.Longitude {
		t.Errorf("venue-less location = %+v, want request coordinates %+v", talk.Location, sf)
	}
}
