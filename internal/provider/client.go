package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/onnwee/whatnow/internal/ratelimit"
)

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 8 << 20

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client performs paced, quota-checked and retried JSON requests for one provider.
type Client struct {
	name   string
	cfg    ClientConfig
	http   *http.Client
	pacer  *rate.Limiter
	quota  ratelimit.Store
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewClient creates a Client for the named provider.
// quota may be nil, in which case no call budget is enforced.
func NewClient(name string, cfg ClientConfig, quota ratelimit.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var pacer *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		name: name,
		cfg:  cfg,
		http: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		pacer:  pacer,
		quota:  quota,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// GetJSON issues a GET to endpoint with query and decodes the JSON body into out.
// Transport errors, 429 and 5xx responses are retried with backoff.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, header http.Header, out any) error {
	if c.quota != nil && c.cfg.Quota.Calls > 0 {
		allowed, _, retryAfter := c.quota.Allow(ctx, c.name, c.cfg.Quota)
		if !allowed {
			return fmt.Errorf("%w: retry after %s", ErrQuotaExceeded, retryAfter)
		}
	}

	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.computeBackoff(attempt - 1)
			c.logger.Debug("retrying provider request",
				slog.String("provider", c.name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return err
			}
		}

		err := c.do(ctx, target, header, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, target string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// decodeError marks a malformed response body, which is never retried.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return "failed to decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// computeBackoff returns BaseDelay*2^attempt capped at MaxDelay, with jitter.
func (c *Client) computeBackoff(attempt int) time.Duration {
	shift := uint(attempt)
	if shift > 30 {
		shift = 30
	}
	backoff := float64(c.cfg.BaseDelay) * float64(uint64(1)<<shift)
	if backoff > float64(c.cfg.MaxDelay) {
		backoff = float64(c.cfg.MaxDelay)
	}
	if c.cfg.JitterFactor > 0 {
		backoff *= 1 + (rand.Float64()-0.5)*c.cfg.JitterFactor
	}
	return time.Duration(backoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
