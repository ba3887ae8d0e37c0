package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthTimeout bounds all dependency checks of one /health request.
const healthTimeout = 5 * time.Second

// HealthChecker is a dependency that can be probed.
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// HealthHandlers serves GET /health.
type HealthHandlers struct {
	checkers  []HealthChecker
	providers []string
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	// Checkers are probed on every request. Optional dependencies that are
	// not configured should simply be left out.
	Checkers []HealthChecker
	// Providers are the enabled event providers, reported but not probed.
	Providers []string
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{checkers: config.Checkers, providers: config.Providers}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Providers []string          `json:"providers"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. It returns 503 when any configured
// dependency fails its probe.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"runtime": "ok"}
	healthy := true
	for _, c := range h.checkers {
		if err := c.HealthCheck(ctx); err != nil {
			checks[c.Name()] = "error"
			healthy = false
			slog.WarnContext(ctx, "health check failed", "dependency", c.Name(), "error", err)
			continue
		}
		checks[c.Name()] = "ok"
	}

	providers := h.providers
	if providers == nil {
		providers = []string{}
	}
	resp := HealthResponse{
		Status:    "healthy",
		Checks:    checks,
		Providers: providers,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r.Context(), status, resp)
}
