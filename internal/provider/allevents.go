package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/ratelimit"
)

type aeResponse struct {
	Events []json.RawMessage `json:"events"`
}

type aeEvent struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	StartDate   string     `json:"start_date"`
	StartTime   string     `json:"start_time"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
	Venue struct {
		Name      string    `json:"name"`
		Address   string    `json:"address"`
		City      string    `json:"city"`
		Latitude  flexFloat `json:"latitude"`
		Longitude flexFloat `json:"longitude"`
	} `json:"venue"`
}

// AllEvents queries the AllEvents community listings API.
type AllEvents struct {
	cfg    Config
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewAllEvents creates an AllEvents adapter.
func NewAllEvents(cfg Config, quota ratelimit.Store, logger *slog.Logger) (*AllEvents, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("allevents: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AllEvents{
		cfg:    cfg.withDefaults(),
		client: NewClient(NameAllEvents, cfg.Client, quota, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Name implements Provider.
func (a *AllEvents) Name() string { return NameAllEvents }

// Fetch implements Provider.
func (a *AllEvents) Fetch(ctx context.Context, loc event.Location, hints QueryHints) ([]event.Event, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	today := a.now()
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 6, 64))
	q.Set("radius", strconv.FormatFloat(a.cfg.RadiusKm, 'f', 0, 64))
	q.Set("limit", strconv.Itoa(a.cfg.PageSize))
	q.Set("sort", "relevance")
	q.Set("start_date", today.Format("2006-01-02"))
	q.Set("end_date", today.Add(a.cfg.Horizon).Format("2006-01-02"))
	if loc.City != "" {
		q.Set("city", loc.City)
	}
	if cats := mapCategories(alleventsCategories, alleventsOrder, hints, nil); len(cats) > 0 {
		q.Set("categories", strings.Join(cats, ","))
	}

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", a.cfg.APIKey)

	var resp aeResponse
	if err := a.client.GetJSON(ctx, strings.TrimRight(a.cfg.BaseURL, "/")+"/events/search", q, header, &resp); err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(resp.Events))
	for i, raw := range resp.Events {
		e, err := a.convert(raw, loc)
		if err != nil {
			a.logger.Debug("skipping allevents event",
				slog.String("provider", NameAllEvents),
				slog.Int("index", i),
				slog.String("reason", err.Error()),
			)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (a *AllEvents) convert(raw json.RawMessage, loc event.Location) (event.Event, error) {
	var src aeEvent
	if err := json.Unmarshal(raw, &src); err != nil {
		return event.Event{}, err
	}

	e := event.Event{
		ID:          "allevents_" + string(src.ID),
		Name:        strings.TrimSpace(src.Title),
		URL:         src.URL,
		Date:        normalizeDate(src.StartDate),
		Time:        normalizeClock(src.StartTime),
		Venue:       strings.TrimSpace(src.Venue.Name),
		Address:     strings.TrimSpace(src.Venue.Address),
		City:        loc.City,
		Location:    loc,
		Category:    src.Category,
		Subcategory: src.Subcategory,
		ImageURL:    src.ImageURL,
		Description: strings.TrimSpace(src.Description),
		Source:      NameAllEvents,
	}
	if src.Venue.City != "" {
		e.City = src.Venue.City
	}
	if e.Category == "" {
		e.Category = "Other"
	}
	if len(src.Images) > 0 && src.Images[0].URL != "" {
		e.ImageURL = src.Images[0].URL
	}
	// Missing venue coordinates fall back to the search location.
	if src.Venue.Latitude.Valid && src.Venue.Longitude.Valid &&
		(src.Venue.Latitude.Value != 0 || src.Venue.Longitude.Value != 0) {
		e.Location = event.Location{
			Latitude:  src.Venue.Latitude.Value,
			Longitude: src.Venue.Longitude.Value,
			City:      e.City,
			Country:   loc.Country,
		}
	}

	sanitizeLinks(&e)
	if err := e.Validate(); err != nil {
		return event.Event{}, err
	}
	return e, nil
}
