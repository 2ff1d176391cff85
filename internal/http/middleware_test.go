package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	logger := zap.NewNop()
	var gotCtxID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Context().Value("correlation_id"); v != nil {
			gotCtxID = v.(string)
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/runs", nil)
	w := httptest.NewRecorder()
	CorrelationIDMiddleware(logger)(inner).ServeHTTP(w, req)

	headerID := w.Header().Get("X-Correlation-ID")
	if headerID == "" {
		t.Fatal("expected X-Correlation-ID header to be set")
	}
	if gotCtxID != headerID {
		t.Errorf("context id = %q, header id = %q, want equal", gotCtxID, headerID)
	}
}

func TestCorrelationIDMiddleware_PropagatesIncomingID(t *testing.T) {
	logger := zap.NewNop()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/runs", nil)
	req.Header.Set("X-Correlation-ID", "incoming-id")
	w := httptest.NewRecorder()
	CorrelationIDMiddleware(logger)(inner).ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "incoming-id" {
		t.Errorf("X-Correlation-ID = %q, want incoming-id", got)
	}
}

func TestRateLimitMiddleware_Denies(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(limiter)(inner)

	// First request consumes the burst token
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}

	// Second request inside the same second is denied
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimitMiddleware(nil)(inner)

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
}

func TestTimeoutMiddleware_CancelsSlowHandler(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			w.WriteHeader(http.StatusServiceUnavailable)
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})
	handler := TimeoutMiddleware(20 * time.Millisecond)(inner)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/scalars/exp1/loss", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 after timeout", w.Code)
	}
}

func TestGetRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/runs", "/api/runs"},
		{"/api/runs/exp1/tags", "/api/runs/{run}/tags"},
		{"/api/scalars/exp1/loss", "/api/scalars/{run}/{tag}"},
		{"/unknown", "/unknown"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.path, nil)
		if got := getRoute(r); got != tt.want {
			t.Errorf("getRoute(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	if got := statusCodeString(200); got != "2xx" {
		t.Errorf("statusCodeString(200) = %q, want 2xx", got)
	}
	if got := statusCodeString(404); got != "4xx" {
		t.Errorf("statusCodeString(404) = %q, want 4xx", got)
	}
	if got := statusCodeString(503); got != "5xx" {
		t.Errorf("statusCodeString(503) = %q, want 5xx", got)
	}
}
