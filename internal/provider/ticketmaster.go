package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/ratelimit"
)

const kmPerMile = 1.609344

type tmResponse struct {
	Embedded struct {
		Events []json.RawMessage `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Info       string `json:"info"`
	PleaseNote string `json:"pleaseNote"`
	Dates      struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
	} `json:"dates"`
	Embedded struct {
		Venues []struct {
			Name    string `json:"name"`
			Address struct {
				Line1 string `json:"line1"`
			} `json:"address"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
			Location struct {
				Latitude  flexFloat `json:"latitude"`
				Longitude flexFloat `json:"longitude"`
			} `json:"location"`
		} `json:"venues"`
	} `json:"_embedded"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
		Genre struct {
			Name string `json:"name"`
		} `json:"genre"`
	} `json:"classifications"`
	Images []struct {
		URL   string `json:"url"`
		Width int    `json:"width"`
	} `json:"images"`
}

// Ticketmaster queries the Ticketmaster Discovery API, one request per
// classification derived from the query hints.
type Ticketmaster struct {
	cfg    Config
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewTicketmaster creates a Ticketmaster adapter.
func NewTicketmaster(cfg Config, quota ratelimit.Store, logger *slog.Logger) (*Ticketmaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ticketmaster: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticketmaster{
		cfg:    cfg.withDefaults(),
		client: NewClient(NameTicketmaster, cfg.Client, quota, logger),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Name implements Provider.
func (t *Ticketmaster) Name() string { return NameTicketmaster }

// Fetch implements Provider. A failing classification query is skipped as
// long as at least one other query succeeds.
func (t *Ticketmaster) Fetch(ctx context.Context, loc event.Location, hints QueryHints) ([]event.Event, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	categories := mapCategories(ticketmasterCategories, ticketmasterOrder, hints, ticketmasterFallback)
	if len(categories) > t.cfg.MaxCategories {
		categories = categories[:t.cfg.MaxCategories]
	}

	var (
		events []event.Event
		errs   []error
		seen   = make(map[string]bool)
	)
	for _, category := range categories {
		batch, err := t.fetchCategory(ctx, loc, category)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("classification %q: %w", category, err))
			continue
		}
		for _, e := range batch {
			if !seen[e.ID] {
				seen[e.ID] = true
				events = append(events, e)
			}
		}
	}
	if len(events) == 0 && len(errs) == len(categories) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		t.logger.Warn("ticketmaster classification query failed", slog.Any("error", err))
	}
	return events, nil
}

func (t *Ticketmaster) fetchCategory(ctx context.Context, loc event.Location, category string) ([]event.Event, error) {
	now := t.now().UTC()
	q := url.Values{}
	q.Set("apikey", t.cfg.APIKey)
	q.Set("latlong", fmt.Sprintf("%.6f,%.6f", loc.Latitude, loc.Longitude))
	q.Set("radius", strconv.Itoa(int(math.Ceil(t.cfg.RadiusKm/kmPerMile))))
	q.Set("unit", "miles")
	q.Set("size", strconv.Itoa(t.cfg.PageSize))
	q.Set("sort", "relevance,desc")
	q.Set("classificationName", category)
	q.Set("startDateTime", now.Format("2006-01-02T15:04:05Z"))
	q.Set("endDateTime", now.Add(t.cfg.Horizon).Format("2006-01-02T15:04:05Z"))

	var resp tmResponse
	if err := t.client.GetJSON(ctx, strings.TrimRight(t.cfg.BaseURL, "/")+"/events.json", q, nil, &resp); err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(resp.Embedded.Events))
	for i, raw := range resp.Embedded.Events {
		e, err := t.convert(raw, loc)
		if err != nil {
			t.logger.Debug("skipping ticketmaster event",
				slog.String("provider", NameTicketmaster),
				slog.Int("index", i),
				slog.String("reason", err.Error()),
			)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

func (t *Ticketmaster) convert(raw json.RawMessage, loc event.Location) (event.Event, error) {
	var src tmEvent
	if err := json.Unmarshal(raw, &src); err != nil {
		return event.Event{}, err
	}

	e := event.Event{
		ID:       "ticketmaster_" + src.ID,
		Name:     strings.TrimSpace(src.Name),
		URL:      src.URL,
		Date:     normalizeDate(src.Dates.Start.LocalDate),
		Time:     normalizeClock(src.Dates.Start.LocalTime),
		City:     loc.City,
		Location: event.Location{Latitude: loc.Latitude, Longitude: loc.Longitude, City: loc.City, Country: loc.Country},
		Category: "Other",
		Source:   NameTicketmaster,
	}

	if len(src.Embedded.Venues) > 0 {
		v := src.Embedded.Venues[0]
		e.Venue = strings.TrimSpace(v.Name)
		e.Address = strings.TrimSpace(v.Address.Line1)
		if v.City.Name != "" {
			e.City = v.City.Name
			e.Location.City = v.City.Name
		}
		if v.Location.Latitude.Valid && v.Location.Longitude.Valid {
			e.Location.Latitude = v.Location.Latitude.Value
			e.Location.Longitude = v.Location.Longitude.Value
		}
	}

	if len(src.Classifications) > 0 {
		c := src.Classifications[0]
		if c.Segment.Name != "" {
			e.Category = c.Segment.Name
		}
		e.Subcategory = c.Genre.Name
	}

	for _, img := range src.Images {
		if img.Width >= 640 {
			e.ImageURL = img.URL
			break
		}
	}
	if e.ImageURL == "" && len(src.Images) > 0 {
		e.ImageURL = src.Images[0].URL
	}

	e.Description = strings.TrimSpace(strings.Join(nonEmpty(src.Info, src.PleaseNote), " "))

	sanitizeLinks(&e)
	if err := e.Validate(); err != nil {
		return event.Event{}, err
	}
	return e, nil
}

func nonEmpty(vals ...string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
