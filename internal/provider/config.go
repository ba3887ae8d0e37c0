package provider

import (
	"errors"
	"time"

	"github.com/onnwee/whatnow/internal/ratelimit"
)

// Default values for provider configuration.
const (
	DefaultRequestTimeout    = 10 * time.Second
	DefaultMaxRetries        = 2
	DefaultBaseDelay         = 200 * time.Millisecond
	DefaultMaxDelay          = 2 * time.Second
	DefaultJitterFactor      = 0.5
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 5
	DefaultRadiusKm          = 50
	DefaultPageSize          = 50
	DefaultHorizon           = 30 * 24 * time.Hour
	DefaultMaxCategories     = 3
)

// Default endpoints.
const (
	DefaultTicketmasterURL = "https://app.ticketmaster.com/discovery/v2"
	DefaultAllEventsURL    = "https://allevents.developer.azure-api.net/api"
	DefaultEventbriteURL   = "https://www.eventbriteapi.com/v3"
)

// Configuration errors.
var (
	ErrInvalidDelay    = errors.New("base delay must be positive")
	ErrInvalidMaxDelay = errors.New("max delay must be >= base delay")
	ErrInvalidJitter   = errors.New("jitter factor must be between 0 and 1")
	ErrInvalidRetries  = errors.New("max retries must be >= 0")
	ErrInvalidRadius   = errors.New("search radius must be positive")
)

// ClientConfig controls outbound HTTP behavior for one provider.
type ClientConfig struct {
	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of extra attempts after a retryable failure
	// (transport error, 429 or 5xx).
	MaxRetries int

	// BaseDelay and MaxDelay bound the exponential backoff between attempts.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// JitterFactor randomizes each delay within [d*(1-j/2), d*(1+j/2)].
	JitterFactor float64

	// RequestsPerSecond and Burst pace outbound requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int

	// Quota is the sliding-window call budget. A zero Calls disables it.
	Quota ratelimit.Limit
}

// DefaultClientConfig returns a ClientConfig with default values.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestTimeout:    DefaultRequestTimeout,
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		JitterFactor:      DefaultJitterFactor,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
	}
}

// Validate checks the retry and pacing parameters.
func (c ClientConfig) Validate() error {
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.BaseDelay <= 0 {
		return ErrInvalidDelay
	}
	if c.MaxDelay < c.BaseDelay {
		return ErrInvalidMaxDelay
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return ErrInvalidJitter
	}
	if c.Quota.Calls != 0 {
		return c.Quota.Validate()
	}
	return nil
}

// Config describes one provider adapter.
type Config struct {
	BaseURL string
	APIKey  string

	// RadiusKm is the search radius around the request location.
	RadiusKm float64

	// PageSize is the number of events requested per call.
	PageSize int

	// Horizon is how far ahead of now to search.
	Horizon time.Duration

	// MaxCategories caps the number of category queries per fetch
	// for providers that search one category per request.
	MaxCategories int

	Client ClientConfig
}

// DefaultConfig returns the defaults for the named provider.
func DefaultConfig(name, apiKey string) Config {
	cfg := Config{
		APIKey:        apiKey,
		RadiusKm:      DefaultRadiusKm,
		PageSize:      DefaultPageSize,
		Horizon:       DefaultHorizon,
		MaxCategories: DefaultMaxCategories,
		Client:        DefaultClientConfig(),
	}
	switch name {
	case NameTicketmaster:
		cfg.BaseURL = DefaultTicketmasterURL
		cfg.PageSize = 20
	case NameAllEvents:
		cfg.BaseURL = DefaultAllEventsURL
	case NameEventbrite:
		cfg.BaseURL = DefaultEventbriteURL
	}
	return cfg
}

// Validate checks that the adapter can be constructed.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return ErrEmptyBaseURL
	}
	if c.RadiusKm <= 0 {
		return ErrInvalidRadius
	}
	return c.Client.Validate()
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Horizon <= 0 {
		c.Horizon = DefaultHorizon
	}
	if c.MaxCategories <= 0 {
		c.MaxCategories = DefaultMaxCategories
	}
	return c
}
