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

// eventbriteDescriptionLimit caps imported descriptions.
const eventbriteDescriptionLimit = 500

type ebResponse struct {
	Events []json.RawMessage `json:"events"`
}

type ebText struct {
	Text string `json:"text"`
}

type ebEvent struct {
	ID          flexString `json:"id"`
	Name        ebText     `json:"name"`
	Description ebText     `json:"description"`
	URL         string     `json:"url"`
	Start       struct {
		Local string `json:"local"`
	} `json:"start"`
	Venue *struct {
		Name    string `json:"name"`
		Address struct {
			Address1  string    `json:"address_1"`
			City      string    `json:"city"`
			Latitude  flexFloat `json:"latitude"`
			Longitude flexFloat `json:"longitude"`
		} `json:"address"`
		Latitude  flexFloat `json:"latitude"`
		Longitude flexFloat `json:"longitude"`
	} `json:"venue"`
	Logo *struct {
		URL string `json:"url"`
	} `json:"logo"`
	Category *struct {
		Name string `json:"name"`
	} `json:"category"`
	Subcategory *struct {
		Name string `json:"name"`
	} `json:"subcategory"`
}

// Eventbrite queries the Eventbrite v3 event search API.
type Eventbrite struct {
	cfg    Config
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewEventbrite creates an Eventbrite adapter.
func NewEventbrite(cfg Config, quota ratelimit.Store, logger *slog.Logger) (*Eventbrite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("eventbrite: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Eventbrite{
		cfg:    cfg.withDefaults(),
		client: NewClient(NameEventbrite, cfg.Client, quota, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Name implements Provider.
func (e *Eventbrite) Name() string { return NameEventbrite }

// Fetch implements Provider.
func (e *Eventbrite) Fetch(ctx context.Context, loc event.Location, hints QueryHints) ([]event.Event, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	q := url.Values{}
	q.Set("location.latitude", strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
	q.Set("location.longitude", strconv.FormatFloat(loc.Longitude, 'f', 6, 64))
	q.Set("location.within", strconv.FormatFloat(e.cfg.RadiusKm, 'f', 0, 64)+"km")
	q.Set("start_date.range_start", now.Format("2006-01-02T15:04:05Z"))
	q.Set("start_date.range_end", now.Add(e.cfg.Horizon).Format("2006-01-02T15:04:05Z"))
	q.Set("expand", "venue,category,subcategory,logo")
	q.Set("page_size", strconv.Itoa(e.cfg.PageSize))
	if cats := mapCategories(eventbriteCategories, eventbriteOrder, hints, nil); len(cats) > 0 {
		q.Set("categories", strings.Join(cats, ","))
	}
	if len(hints.Keywords) > 0 {
		q.Set("q", strings.Join(hints.Keywords, " "))
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	var resp ebResponse
	if err := e.client.GetJSON(ctx, strings.TrimRight(e.cfg.BaseURL, "/")+"/events/search/", q, header, &resp); err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(resp.Events))
	for i, raw := range resp.Events {
		ev, err := e.convert(raw, loc)
		if err != nil {
			e.logger.Debug("skipping eventbrite event",
				slog.String("provider", NameEventbrite),
				slog.Int("index", i),
				slog.String("reason", err.Error()),
			)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (e *Eventbrite) convert(raw json.RawMessage, loc event.Location) (event.Event, error) {
	var src ebEvent
	if err := json.Unmarshal(raw, &src); err != nil {
		return event.Event{}, err
	}

	date, clock := splitLocal(src.Start.Local)
	ev := event.Event{
		ID:          "eventbrite_" + string(src.ID),
		Name:        strings.TrimSpace(src.Name.Text),
		Description: truncateRunes(src.Description.Text, eventbriteDescriptionLimit),
		URL:         src.URL,
		Date:        date,
		Time:        clock,
		City:        loc.City,
		Location:    loc,
		Category:    "Other",
		Source:      NameEventbrite,
	}

	if v := src.Venue; v != nil {
		ev.Venue = strings.TrimSpace(v.Name)
		ev.Address = strings.TrimSpace(v.Address.Address1)
		if v.Address.City != "" {
			ev.City = v.Address.City
		}
		lat, lng := v.Latitude, v.Longitude
		if !lat.Valid || !lng.Valid {
			lat, lng = v.Address.Latitude, v.Address.Longitude
		}
		if lat.Valid && lng.Valid {
			ev.Location = event.Location{Latitude: lat.Value, Longitude: lng.Value, City: ev.City, Country: loc.Country}
		}
	}
	if src.Logo != nil {
		ev.ImageURL = src.Logo.URL
	}
	if src.Category != nil && src.Category.Name != "" {
		ev.Category = src.Category.Name
	}
	if src.Subcategory != nil {
		ev.Subcategory = src.Subcategory.Name
	}

	sanitizeLinks(&ev)
	if err := ev.Validate(); err != nil {
		return event.Event{}, err
	}
	return ev, nil
}
