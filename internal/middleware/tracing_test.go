package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func TestTracing_CreatesSpanWithRequestID(t *testing.T) {
	recorder := withSpanRecorder(t)

	var capturedTraceID string
	handler := RequestID(Tracing("whatnow-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedTraceID = GetTraceID(r)
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "POST /v1/recommendations" {
		t.Errorf("span name = %q, want POST /v1/recommendations", span.Name())
	}
	if span.SpanContext().TraceID().String() != capturedTraceID {
		t.Errorf("trace ID mismatch: span %s, handler %s", span.SpanContext().TraceID(), capturedTraceID)
	}

	found := false
	for _, attr := range span.Attributes() {
		if attr.Key == attribute.Key("request.id") && attr.Value.AsString() == "req-42" {
			found = true
		}
	}
	if !found {
		t.Errorf("span attributes %v lack request.id", span.Attributes())
	}
}

func TestTracing_SkipsHealthAndMetrics(t *testing.T) {
	recorder := withSpanRecorder(t)

	handler := Tracing("whatnow-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/health", "/metrics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if n := len(recorder.Ended()); n != 0 {
		t.Errorf("expected no spans for infrastructure paths, got %d", n)
	}
}

func TestGetTraceID_NoActiveSpan(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if traceID := GetTraceID(req); traceID != "" {
		t.Errorf("expected empty trace ID for request without span, got %q", traceID)
	}
}
