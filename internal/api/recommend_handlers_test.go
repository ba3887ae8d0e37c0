package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/whatnow/internal/aggregator"
	"github.com/onnwee/whatnow/internal/event"
	"github.com/onnwee/whatnow/internal/ranking"
)

type stubRecommender struct {
	got    aggregator.Request
	called bool
	res    aggregator.Result
	err    error
	wait   bool
}

func (s *stubRecommender) Recommend(ctx context.Context, req aggregator.Request) (aggregator.Result, error) {
	s.called = true
	s.got = req
	if s.wait {
		<-ctx.Done()
		return aggregator.Result{}, ctx.Err()
	}
	return s.res, s.err
}

func newTestHandlers(rec Recommender, timeout time.Duration) *RecommendHandlers {
	return NewRecommendHandlers(rec, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postRecommend(h *RecommendHandlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/recommendations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Recommend(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error body: %v, body: %s", err, rr.Body.String())
	}
	return resp.Error
}

func TestRecommend_Success(t *testing.T) {
	rec := &stubRecommender{res: aggregator.Result{
		Events: []event.CanonicalEvent{{
			Event:                event.Event{ID: "tm-1", Name: "Late Show", Source: "ticketmaster"},
			RelevanceScore:       0.82,
			RecommendationReason: "Recommended because it is happening soon",
		}},
		Diagnostics: aggregator.Diagnostics{
			Diagnostics: ranking.Diagnostics{Method: ranking.MethodRules, EvaluatedCount: 1, AverageScore: 0.82},
			RawCount:    3,
		},
	}}
	h := newTestHandlers(rec, time.Second)

	rr := postRecommend(h, `{"latitude":37.7749,"longitude":-122.4194,"city":"San Francisco","activity":"comedy show tonight","auxiliary":{"bio":"I love jazz"}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if rec.got.Location.Latitude != 37.7749 || rec.got.Location.City != "San Francisco" {
		t.Errorf("location = %+v", rec.got.Location)
	}
	if rec.got.Activity != "comedy show tonight" || rec.got.Auxiliary["bio"] != "I love jazz" {
		t.Errorf("request = %+v", rec.got)
	}

	var resp struct {
		Events []struct {
			ID             string  `json:"id"`
			RelevanceScore float64 `json:"relevance_score"`
			Reason         string  `json:"recommendation_reason"`
		} `json:"events"`
		Diagnostics struct {
			Method         string `json:"method"`
			EvaluatedCount int    `json:"evaluated_count"`
			RawCount       int    `json:"raw_count"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].ID != "tm-1" || resp.Events[0].RelevanceScore != 0.82 {
		t.Errorf("events = %+v", resp.Events)
	}
	if resp.Diagnostics.Method != ranking.MethodRules || resp.Diagnostics.RawCount != 3 {
		t.Errorf("diagnostics = %+v", resp.Diagnostics)
	}
}

func TestRecommend_EmptyResultIsOK(t *testing.T) {
	rec := &stubRecommender{res: aggregator.Result{Events: []event.CanonicalEvent{}}}
	rr := postRecommend(newTestHandlers(rec, time.Second), `{"latitude":0,"longitude":0,"activity":"anything"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"events":[]`) {
		t.Errorf("body = %s, want an empty events array", rr.Body.String())
	}
}

func TestRecommend_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"latitude":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing latitude", `{"longitude":10,"activity":"x"}`, http.StatusBadRequest, ErrCodeInvalidLocation},
		{"latitude out of range", `{"latitude":91,"longitude":10}`, http.StatusBadRequest, ErrCodeInvalidLocation},
		{"longitude out of range", `{"latitude":10,"longitude":-180.5}`, http.StatusBadRequest, ErrCodeInvalidLocation},
		{"activity too long", `{"latitude":1,"longitude":1,"activity":"` + strings.Repeat("a", MaxActivityLength+1) + `"}`, http.StatusBadRequest, ErrCodeValidation},
		{"control character in activity", `{"latitude":1,"longitude":1,"activity":"jazz\u0000"}`, http.StatusBadRequest, ErrCodeValidation},
		{"auxiliary text too long", `{"latitude":1,"longitude":1,"auxiliary":{"bio":"` + strings.Repeat("b", MaxAuxiliaryLength+1) + `"}}`, http.StatusBadRequest, ErrCodeValidation},
		{"body too large", `{"activity":"` + strings.Repeat("a", MaxRequestBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stubRecommender{}
			rr := postRecommend(newTestHandlers(rec, time.Second), tt.body)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := decodeError(t, rr); got.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", got.Code, tt.wantCode)
			}
			if rec.called {
				t.Error("engine should not be called for a rejected request")
			}
		})
	}
}

func TestRecommend_Timeout(t *testing.T) {
	rec := &stubRecommender{wait: true}
	rr := postRecommend(newTestHandlers(rec, 20*time.Millisecond), `{"latitude":1,"longitude":1,"activity":"jazz"}`)

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != ErrCodeTimeout {
		t.Errorf("code = %s, want %s", got.Code, ErrCodeTimeout)
	}
}

func TestRecommend_EngineRejectsLocation(t *testing.T) {
	rec := &stubRecommender{err: event.ErrInvalidLocation}
	rr := postRecommend(newTestHandlers(rec, time.Second), `{"latitude":1,"longitude":1}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != ErrCodeInvalidLocation {
		t.Errorf("code = %s, want %s", got.Code, ErrCodeInvalidLocation)
	}
}
