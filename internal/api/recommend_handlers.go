package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/aggregator"
	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/profile"
	"github.com/onnwee/whatnow/internal/validate"
)

// Request limits.
const (
	DefaultRequestTimeout = 25 * time.Second
	MaxRequestBodyBytes   = 64 << 10
	MaxActivityLength     = 500
	MaxNameLength         = 200
	MaxAuxiliarySources   = 10
	MaxAuxiliaryLength    = 5000
)

// Recommender produces recommendations. *aggregator.Engine satisfies it.
type Recommender interface {
	Recommend(ctx context.Context, req aggregator.Request) (aggregator.Result, error)
}

// RecommendRequest is the body of POST /v1/recommendations. Latitude and
// longitude are pointers so a missing coordinate is distinguishable from 0.
type RecommendRequest struct {
	Latitude  *float64          `json:"latitude"`
	Longitude *float64          `json:"longitude"`
	City      string            `json:"city,omitempty"`
	Country   string            `json:"country,omitempty"`
	Activity  string            `json:"activity"`
	Name      string            `json:"name,omitempty"`
	Auxiliary map[string]string `json:"auxiliary,omitempty"`
	Profile   *profile.Profile  `json:"profile,omitempty"`
}

// RecommendResponse is the body of a successful recommendation.
type RecommendResponse struct {
	Events      []event.CanonicalEvent `json:"events"`
	Diagnostics aggregator.Diagnostics `json:"diagnostics"`
	Profile     *profile.Profile       `json:"profile,omitempty"`
}

// RecommendHandlers serves recommendation requests.
type RecommendHandlers struct {
	engine  Recommender
	timeout time.Duration
	logger  *slog.Logger
}

// NewRecommendHandlers creates the handlers. A non-positive timeout uses
// DefaultRequestTimeout; a nil logger uses slog.Default().
func NewRecommendHandlers(engine Recommender, timeout time.Duration, logger *slog.Logger) *RecommendHandlers {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecommendHandlers{engine: engine, timeout: timeout, logger: logger}
}

// Recommend handles POST /v1/recommendations.
func (h *RecommendHandlers) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	if err != nil {
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
		return
	}
	var req RecommendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Request body must be a JSON object")
		return
	}

	if req.Latitude == nil || req.Longitude == nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLocation, "latitude and longitude are required")
		return
	}
	loc := event.Location{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		City:      req.City,
		Country:   req.Country,
	}
	if err := loc.Validate(); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLocation, err.Error())
		return
	}
	if msg := validateText(&req); msg != "" {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	res, err := h.engine.Recommend(ctx, aggregator.Request{
		Location:  loc,
		Activity:  req.Activity,
		Name:      req.Name,
		Auxiliary: req.Auxiliary,
		Profile:   req.Profile,
	})
	switch {
	case err == nil:
	case errors.Is(err, event.ErrInvalidLocation):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLocation, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, ctx, http.StatusGatewayTimeout, ErrCodeTimeout, "Recommendation timed out")
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		return
	default:
		h.logger.ErrorContext(ctx, "recommendation failed", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build recommendations")
		return
	}

	writeJSON(w, ctx, http.StatusOK, RecommendResponse{
		Events:      res.Events,
		Diagnostics: res.Diagnostics,
		Profile:     res.Profile,
	})
}

// validateText checks the caller's free text and returns a message for the
// first field that fails, or "" when all pass. Accepted text is trimmed in
// place.
func validateText(req *RecommendRequest) string {
	activity, err := validate.Text(req.Activity, validate.TextConstraints{MaxLength: MaxActivityLength, AllowEmpty: true, TrimSpace: true})
	if err != nil {
		return "activity: " + err.Error()
	}
	req.Activity = activity

	name, err := validate.Text(req.Name, validate.TextConstraints{MaxLength: MaxNameLength, AllowEmpty: true, TrimSpace: true})
	if err != nil {
		return "name: " + err.Error()
	}
	req.Name = name

	if len(req.Auxiliary) > MaxAuxiliarySources {
		return fmt.Sprintf("at most %d auxiliary sources are allowed", MaxAuxiliarySources)
	}
	for source, text := range req.Auxiliary {
		clean, err := validate.Text(text, validate.TextConstraints{MaxLength: MaxAuxiliaryLength, AllowEmpty: true, TrimSpace: true})
		if err != nil {
			return fmt.Sprintf("auxiliary source %q: %v", source, err)
		}
		req.Auxiliary[source] = clean
	}
	return ""
}
