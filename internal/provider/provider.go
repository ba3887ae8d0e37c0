// Package provider adapts external event-discovery APIs to the normalized
// event.Event record.
//
// Each adapter owns the mapping from its provider's payload to event.Event.
// Raw provider JSON never leaves this package. Individual records that fail
// to decode or validate are skipped and logged, while transport failures are
// returned to the caller as errors.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/whatnow/internal/event"
)

// Provider names.
const (
	NameTicketmaster = "ticketmaster"
	NameAllEvents    = "allevents"
	NameEventbrite   = "eventbrite"
)

// Errors returned by adapters and the HTTP client.
var (
	ErrQuotaExceeded = errors.New("provider call quota exhausted")
	ErrMissingAPIKey = errors.New("provider API key is empty")
	ErrEmptyBaseURL  = errors.New("provider base URL is empty")
)

// QueryHints narrows a provider search. Categories are interest categories
// such as "music" or "comedy"; Keywords are free terms from the request.
// Adapters translate both into their own category vocabulary.
type QueryHints struct {
	Categories []string
	Keywords   []string
}

// Provider fetches events near a location.
type Provider interface {
	// Name returns the provider tag stored in event.Event.Source.
	Name() string
	// Fetch returns the normalized events for loc. loc must hold valid coordinates.
	Fetch(ctx context.Context, loc event.Location, hints QueryHints) ([]event.Event, error)
}

// Error records a single provider's failure along with how long the call ran.
type Error struct {
	Provider string
	Elapsed  time.Duration
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed after %s: %v", e.Provider, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
